package controller

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/events"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/selection"
)

const waitTimeout = 2 * time.Second

type stubLabels struct{}

func (stubLabels) Label(key string, params map[string]interface{}) string {
	if len(params) == 0 {
		return key
	}
	if name, ok := params["name"]; ok {
		return fmt.Sprintf("%s:%v", key, name)
	}
	return fmt.Sprintf("%s:%v", key, params["remainingMinutes"])
}

// switchingLabels prefixes every label with the active language.
type switchingLabels struct {
	mu       sync.Mutex
	language string
	err      error
}

func (l *switchingLabels) SetLanguage(language string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.language = language
	return nil
}

func (l *switchingLabels) Label(key string, _ map[string]interface{}) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.language + ":" + key
}

type fakePlayer struct {
	mu       sync.Mutex
	played   []string
	busy     bool
	stops    int
	finished chan struct{}
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{finished: make(chan struct{}, 1)}
}

func (p *fakePlayer) Play(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return false
	}
	p.played = append(p.played, path)
	return true
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *fakePlayer) Finished() <-chan struct{} { return p.finished }

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type memoryPrefs struct {
	mu     sync.Mutex
	values map[string]bool
	err    error
}

func (m *memoryPrefs) GetBool(_ context.Context, key string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryPrefs) SetBool(_ context.Context, key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

type eventRecorder struct {
	ch chan events.Event
}

func (r *eventRecorder) OnEvent(e events.Event) {
	r.ch <- e
}

type harness struct {
	t      *testing.T
	ctrl   *Controller
	clock  *clockwork.FakeClock
	player *fakePlayer
	prefs  *memoryPrefs
	events *eventRecorder
	ctx    context.Context
	// stop cancels Run and waits for it to return.
	stop func() error
}

func testSettings(members ...models.TeamMember) models.Settings {
	return models.Settings{
		Language: "en",
		StandupPicker: models.StandupPickerSettings{
			TeamMembers:                members,
			StandupHour:                "9",
			StandupMinute:              "30",
			StandupTimeInMin:           "2",
			StandupEndReminderAfterMin: "1",
			StandupEndReminderSound:    "reminder.mp3",
			SuccessSound:               "success.mp3",
			StandupMusic: []models.Sound{
				{Name: "gong", Path: "gong.mp3", Selected: true},
				{Name: "horn", Path: "horn.mp3"},
			},
		},
	}
}

func abc() models.Settings {
	return testSettings(
		models.TeamMember{Name: "A"},
		models.TeamMember{Name: "B", Disabled: true},
		models.TeamMember{Name: "C"},
	)
}

func start(t *testing.T, settings models.Settings, seed int64, startAt time.Time) *harness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(startAt)
	player := newFakePlayer()
	prefs := &memoryPrefs{values: map[string]bool{}}
	rec := &eventRecorder{ch: make(chan events.Event, 4096)}

	ctrl := New(Config{
		Settings:    settings,
		Labels:      stubLabels{},
		Player:      player,
		Preferences: prefs,
		Clock:       clock,
		Rand:        rand.New(rand.NewSource(seed)),
	})
	ctrl.AddListener(rec)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			runErr = <-errCh
		})
		return runErr
	}
	t.Cleanup(func() { stop() })

	h := &harness{t: t, ctrl: ctrl, clock: clock, player: player, prefs: prefs, events: rec, ctx: context.Background(), stop: stop}
	// The loop has started once a command round-trips.
	_, err := ctrl.View(h.ctx)
	require.NoError(t, err)
	return h
}

func morning() time.Time {
	return time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
}

// waitFor reads events until one of type typ arrives and returns it.
func (h *harness) waitFor(typ events.Type) events.Event {
	h.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-h.events.ch:
			if e.Type == typ {
				return e
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s", typ)
			return events.Event{}
		}
	}
}

// drain returns whatever events are already buffered.
func (h *harness) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-h.events.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func (h *harness) view() models.View {
	h.t.Helper()
	v, err := h.ctrl.View(h.ctx)
	require.NoError(h.t, err)
	return v
}

// reveal triggers a pick and steps the animation to its end.
func (h *harness) reveal() events.PickMadePayload {
	h.t.Helper()
	require.NoError(h.t, h.ctrl.TriggerPick(h.ctx))
	started := h.waitFor(events.TypePickStarted)
	payload := parse[events.PickStartedPayload](h.t, started)

	for i := 0; i < payload.PoolSize; i++ {
		h.clock.Advance(selection.StepInterval)
		h.waitFor(events.TypeRevealStep)
	}
	made := h.waitFor(events.TypePickMade)
	return parse[events.PickMadePayload](h.t, made)
}

// tick advances one second and waits for the countdown to observe it.
func (h *harness) tick() events.CountdownTickPayload {
	h.t.Helper()
	h.clock.Advance(time.Second)
	return parse[events.CountdownTickPayload](h.t, h.waitFor(events.TypeCountdownTick))
}

func parse[T any](t *testing.T, e events.Event) T {
	t.Helper()
	payload, err := events.ParsePayload(e)
	require.NoError(t, err)
	p, ok := payload.(*T)
	require.True(t, ok, "unexpected payload %T", payload)
	return *p
}

func selectedNames(v models.View) []string {
	var names []string
	for _, m := range v.Members {
		if m.Selected {
			names = append(names, m.Name)
		}
	}
	return names
}

func memberByName(t *testing.T, v models.View, name string) models.Member {
	t.Helper()
	i := models.IndexOf(v.Members, name)
	require.GreaterOrEqual(t, i, 0, "member %s missing", name)
	return v.Members[i]
}

func TestNew_InitialView(t *testing.T) {
	h := start(t, abc(), 1, morning())

	v := h.view()
	assert.Equal(t, LabelClickToSelect, v.Title)
	assert.Empty(t, v.Time)
	assert.Len(t, v.Members, 3)
	assert.Empty(t, selectedNames(v))
	assert.True(t, v.DefaultColor)
	assert.False(t, v.Shuffling)
	assert.False(t, v.Revealed)
	assert.Equal(t, models.DefaultBackgroundImage, v.BackgroundImage)
	assert.True(t, memberByName(t, v, "B").Disabled)
}

func TestTriggerPick_PicksOnlyEnabledMembers(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			h := start(t, abc(), seed, morning())

			made := h.reveal()
			assert.Contains(t, []string{"A", "C"}, made.Member)
			assert.Equal(t, 120, made.PlannedSec)

			v := h.view()
			assert.Equal(t, []string{made.Member}, selectedNames(v))
			assert.Equal(t, made.Member, v.Members[0].Name, "selected member is listed first")
			assert.True(t, v.Revealed)
			assert.False(t, v.Shuffling)
			assert.Equal(t, LabelStartsToday+":"+made.Member, v.Title)

			b := memberByName(t, v, "B")
			assert.True(t, b.Disabled)
			assert.False(t, b.Selected)
			assert.Equal(t, []string{"success.mp3"}, h.player.Played())
		})
	}
}

func TestTriggerPick_ShowsPleaseWaitWhileShuffling(t *testing.T) {
	h := start(t, abc(), 3, morning())

	require.NoError(t, h.ctrl.TriggerPick(h.ctx))
	v := h.view()
	assert.True(t, v.Shuffling)
	assert.Equal(t, LabelPleaseWait, v.Title)
	assert.Empty(t, selectedNames(v))
}

func TestTriggerPick_NoEligibleMembers(t *testing.T) {
	settings := testSettings(
		models.TeamMember{Name: "A", Disabled: true},
		models.TeamMember{Name: "B", Disabled: true},
	)
	h := start(t, settings, 1, morning())
	before := h.view()

	err := h.ctrl.TriggerPick(h.ctx)
	assert.ErrorIs(t, err, ErrNoEligibleCandidates)

	after := h.view()
	assert.Equal(t, before, after)
	assert.Empty(t, h.drain())
}

func TestToggleDisabled_SelectedMemberIsNoOp(t *testing.T) {
	h := start(t, abc(), 2, morning())
	made := h.reveal()

	require.NoError(t, h.ctrl.ToggleDisabled(h.ctx, made.Member))
	v := h.view()
	m := memberByName(t, v, made.Member)
	assert.False(t, m.Disabled)
	assert.True(t, m.Selected)
}

func TestToggleDisabled_FlipsAndReportsUnknown(t *testing.T) {
	h := start(t, abc(), 2, morning())

	require.NoError(t, h.ctrl.ToggleDisabled(h.ctx, "B"))
	toggled := parse[events.MemberToggledPayload](t, h.waitFor(events.TypeMemberToggled))
	assert.Equal(t, events.MemberToggledPayload{Member: "B", Disabled: false}, toggled)
	assert.False(t, memberByName(t, h.view(), "B").Disabled)

	err := h.ctrl.ToggleDisabled(h.ctx, "Z")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestReset_FromEveryState(t *testing.T) {
	assertIdle := func(t *testing.T, h *harness) {
		t.Helper()
		v := h.view()
		assert.Empty(t, selectedNames(v))
		assert.Empty(t, v.Time)
		assert.False(t, v.Shuffling)
		assert.False(t, v.Revealed)
		assert.Equal(t, LabelClickToSelect, v.Title)

		// No timer survives a reset.
		h.drain()
		for i := 0; i < 3; i++ {
			h.clock.Advance(time.Second)
		}
		h.view()
		for _, e := range h.drain() {
			assert.NotEqual(t, events.TypeRevealStep, e.Type)
			assert.NotEqual(t, events.TypeCountdownTick, e.Type)
		}
	}

	t.Run("idle", func(t *testing.T) {
		h := start(t, abc(), 4, morning())
		require.NoError(t, h.ctrl.Reset(h.ctx))
		h.waitFor(events.TypeSessionReset)
		assertIdle(t, h)
	})

	t.Run("shuffling", func(t *testing.T) {
		h := start(t, abc(), 4, morning())
		require.NoError(t, h.ctrl.TriggerPick(h.ctx))
		h.clock.Advance(selection.StepInterval)
		h.waitFor(events.TypeRevealStep)

		require.NoError(t, h.ctrl.Reset(h.ctx))
		h.waitFor(events.TypeSessionReset)
		assertIdle(t, h)
	})

	t.Run("counting down", func(t *testing.T) {
		h := start(t, abc(), 4, morning())
		made := h.reveal()
		h.tick()
		h.tick()

		require.NoError(t, h.ctrl.Reset(h.ctx))
		completed := parse[events.SessionCompletedPayload](t, h.waitFor(events.TypeSessionCompleted))
		assert.Equal(t, made.Member, completed.Member)
		assert.Equal(t, events.OutcomeReset, completed.Outcome)
		h.waitFor(events.TypeSessionReset)
		assertIdle(t, h)
	})
}

func TestCountdown_ReminderAndCompletion(t *testing.T) {
	h := start(t, abc(), 5, morning())
	made := h.reveal()

	first := h.tick()
	assert.Equal(t, 119, first.RemainingSec)
	assert.Equal(t, 2, first.RemainingMinutes)
	assert.Equal(t, LabelRemainingTime+":2", h.view().Time)

	reminders := 0
	for remaining := 118; remaining >= 1; remaining-- {
		h.clock.Advance(time.Second)
		for {
			e := h.waitForAny()
			if e.Type == events.TypeReminderFired {
				reminders++
				p := parse[events.ReminderFiredPayload](t, e)
				assert.Equal(t, 60, p.RemainingSec)
				assert.Equal(t, "reminder.mp3", p.Sound)
				continue
			}
			if e.Type == events.TypeCountdownTick {
				assert.Equal(t, remaining, parse[events.CountdownTickPayload](t, e).RemainingSec)
				break
			}
		}
	}
	assert.Equal(t, 1, reminders)

	last := h.tick()
	assert.Equal(t, 0, last.RemainingSec)

	completed := parse[events.SessionCompletedPayload](t, h.waitFor(events.TypeSessionCompleted))
	assert.Equal(t, events.OutcomeCompleted, completed.Outcome)
	assert.Equal(t, made.Member, completed.Member)
	require.NotNil(t, completed.TimeStarted)
	require.NotNil(t, completed.TimeEnded)
	assert.Equal(t, 119, *completed.TimeStarted)
	assert.Equal(t, 0, *completed.TimeEnded)

	v := h.view()
	assert.Empty(t, selectedNames(v))
	assert.Empty(t, v.Time)
	assert.Equal(t, LabelClickToSelect, v.Title)
	assert.True(t, v.Revealed)
	assert.Equal(t, []string{"success.mp3", "reminder.mp3"}, h.player.Played())

	// The countdown is over: further seconds produce nothing.
	h.clock.Advance(time.Second)
	h.view()
	for _, e := range h.drain() {
		assert.NotEqual(t, events.TypeCountdownTick, e.Type)
	}
}

func (h *harness) waitForAny() events.Event {
	h.t.Helper()
	select {
	case e := <-h.events.ch:
		return e
	case <-time.After(waitTimeout):
		h.t.Fatal("timed out waiting for an event")
		return events.Event{}
	}
}

func TestCountdown_DisabledByMalformedDuration(t *testing.T) {
	settings := abc()
	settings.StandupPicker.StandupTimeInMin = "soon"
	h := start(t, settings, 6, morning())

	made := h.reveal()
	assert.Equal(t, 0, made.PlannedSec)

	h.clock.Advance(time.Second)
	h.view()
	for _, e := range h.drain() {
		assert.NotEqual(t, events.TypeCountdownTick, e.Type)
	}
	assert.Len(t, selectedNames(h.view()), 1)
}

func TestTriggerPick_PreemptsRunningSession(t *testing.T) {
	h := start(t, abc(), 7, morning())
	first := h.reveal()
	h.tick()

	require.NoError(t, h.ctrl.TriggerPick(h.ctx))
	completed := parse[events.SessionCompletedPayload](t, h.waitFor(events.TypeSessionCompleted))
	assert.Equal(t, events.OutcomePreempted, completed.Outcome)
	assert.Equal(t, first.Member, completed.Member)
	h.waitFor(events.TypePickStarted)

	v := h.view()
	assert.True(t, v.Shuffling)
	assert.Empty(t, v.Time)
	assert.Empty(t, selectedNames(v))

	for i := 0; i < 2; i++ {
		h.clock.Advance(selection.StepInterval)
		h.waitFor(events.TypeRevealStep)
	}
	second := parse[events.PickMadePayload](t, h.waitFor(events.TypePickMade))
	assert.NotEqual(t, first.SessionID, second.SessionID)

	next := h.tick()
	assert.Equal(t, 119, next.RemainingSec, "countdown restarted from the full length")
}

func TestMoveNext(t *testing.T) {
	settings := testSettings(
		models.TeamMember{Name: "A"},
		models.TeamMember{Name: "B"},
		models.TeamMember{Name: "C"},
	)
	h := start(t, settings, 8, morning())

	err := h.ctrl.MoveNext(h.ctx)
	assert.ErrorIs(t, err, ErrNoSelection)

	made := h.reveal()
	v := h.view()
	require.Equal(t, made.Member, v.Members[0].Name)

	require.NoError(t, h.ctrl.MoveNext(h.ctx))
	passed := parse[events.TurnPassedPayload](t, h.waitFor(events.TypeTurnPassed))
	assert.Equal(t, made.Member, passed.From)
	assert.Equal(t, v.Members[1].Name, passed.To)

	v = h.view()
	assert.Equal(t, []string{v.Members[1].Name}, selectedNames(v))
	assert.Equal(t, LabelStartsToday+":"+v.Members[1].Name, v.Title)

	require.NoError(t, h.ctrl.MoveNext(h.ctx))
	err = h.ctrl.MoveNext(h.ctx)
	assert.ErrorIs(t, err, ErrNoNextMember)
	assert.Equal(t, []string{v.Members[2].Name}, selectedNames(h.view()))
}

func TestMinuteWatcher_PlaysStandupSound(t *testing.T) {
	h := start(t, abc(), 9, time.Date(2026, time.March, 2, 9, 29, 30, 0, time.UTC))

	h.clock.Advance(time.Minute)
	standup := parse[events.StandupTimePayload](t, h.waitFor(events.TypeStandupTime))
	assert.Equal(t, 9, standup.Hour)
	assert.Equal(t, 30, standup.Minute)
	assert.Equal(t, "gong.mp3", standup.Sound)
	assert.Equal(t, []string{"gong.mp3"}, h.player.Played())

	h.clock.Advance(time.Minute)
	h.view()
	for _, e := range h.drain() {
		assert.NotEqual(t, events.TypeStandupTime, e.Type)
	}
}

func TestMinuteWatcher_DisabledByInvalidTime(t *testing.T) {
	settings := abc()
	settings.StandupPicker.StandupHour = "nine"
	h := start(t, settings, 9, time.Date(2026, time.March, 2, 9, 29, 30, 0, time.UTC))

	h.clock.Advance(time.Minute)
	h.view()
	for _, e := range h.drain() {
		assert.NotEqual(t, events.TypeStandupTime, e.Type)
	}
	assert.Empty(t, h.player.Played())
}

func TestPlay_DroppedWhileBusy(t *testing.T) {
	h := start(t, abc(), 10, morning())
	h.player.mu.Lock()
	h.player.busy = true
	h.player.mu.Unlock()

	h.reveal()
	assert.Empty(t, h.player.Played())
	assert.True(t, h.view().AudioPlaying)

	require.NoError(t, h.ctrl.StopAudio(h.ctx))
	h.player.mu.Lock()
	assert.Equal(t, 1, h.player.stops)
	h.player.mu.Unlock()
}

func TestSoundFinished_EmitsAudioChanged(t *testing.T) {
	h := start(t, abc(), 10, morning())

	h.player.finished <- struct{}{}
	changed := parse[events.AudioChangedPayload](t, h.waitFor(events.TypeAudioChanged))
	assert.False(t, changed.Playing)
}

func TestToggleContrast_Persists(t *testing.T) {
	h := start(t, abc(), 11, morning())

	value, err := h.ctrl.ToggleContrast(h.ctx)
	require.NoError(t, err)
	assert.False(t, value)
	assert.False(t, h.view().DefaultColor)
	assert.Equal(t, map[string]bool{DefaultColorPreferenceKey: false}, h.prefs.values)

	h.prefs.err = errors.New("disk full")
	value, err = h.ctrl.ToggleContrast(h.ctx)
	assert.Error(t, err)
	assert.True(t, value)
	assert.True(t, h.view().DefaultColor)
}

// gatedPrefs holds the first SetBool open until gate is closed.
type gatedPrefs struct {
	memoryPrefs
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedPrefs) SetBool(ctx context.Context, key string, value bool) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.gate
	}
	return g.memoryPrefs.SetBool(ctx, key, value)
}

func TestToggleContrast_OverlappingSavesKeepOrder(t *testing.T) {
	prefs := &gatedPrefs{
		memoryPrefs: memoryPrefs{values: map[string]bool{}},
		entered:     make(chan struct{}),
		gate:        make(chan struct{}),
	}
	ctrl := New(Config{Settings: abc(), Preferences: prefs, Clock: clockwork.NewFakeClockAt(morning())})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	first := make(chan error, 1)
	go func() {
		_, err := ctrl.ToggleContrast(ctx)
		first <- err
	}()
	<-prefs.entered

	second := make(chan error, 1)
	go func() {
		_, err := ctrl.ToggleContrast(ctx)
		second <- err
	}()

	select {
	case <-second:
		t.Fatal("second toggle finished while the first save was still pending")
	case <-time.After(50 * time.Millisecond):
	}
	_, err := ctrl.View(ctx)
	require.NoError(t, err, "the loop stays responsive during a slow save")

	close(prefs.gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	v, err := ctrl.View(ctx)
	require.NoError(t, err)
	prefs.mu.Lock()
	defer prefs.mu.Unlock()
	assert.True(t, v.DefaultColor)
	assert.Equal(t, v.DefaultColor, prefs.values[DefaultColorPreferenceKey])
}

func TestToggleContrast_CancelledWhileWaiting(t *testing.T) {
	prefs := &gatedPrefs{
		memoryPrefs: memoryPrefs{values: map[string]bool{}},
		entered:     make(chan struct{}),
		gate:        make(chan struct{}),
	}
	ctrl := New(Config{Settings: abc(), Preferences: prefs, Clock: clockwork.NewFakeClockAt(morning())})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	go ctrl.ToggleContrast(ctx)
	<-prefs.entered

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	_, err := ctrl.ToggleContrast(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(prefs.gate)
}

func TestRun_LoadsContrastPreference(t *testing.T) {
	clock := clockwork.NewFakeClockAt(morning())
	prefs := &memoryPrefs{values: map[string]bool{DefaultColorPreferenceKey: false}}
	ctrl := New(Config{Settings: abc(), Preferences: prefs, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	v, err := ctrl.View(ctx)
	require.NoError(t, err)
	assert.False(t, v.DefaultColor)
}

func TestUpdateSettings_CancelsAndRebuilds(t *testing.T) {
	h := start(t, abc(), 12, morning())
	h.reveal()
	h.tick()

	next := testSettings(models.TeamMember{Name: "X"}, models.TeamMember{Name: "Y", Disabled: true})
	next.StandupPicker.Background = `C:\images\beach.png`
	require.NoError(t, h.ctrl.UpdateSettings(h.ctx, next))

	completed := parse[events.SessionCompletedPayload](t, h.waitFor(events.TypeSessionCompleted))
	assert.Equal(t, events.OutcomeReset, completed.Outcome)
	changed := parse[events.SettingsChangedPayload](t, h.waitFor(events.TypeSettingsChanged))
	assert.Equal(t, 2, changed.Members)
	assert.True(t, changed.WatcherActive)

	v := h.view()
	assert.ElementsMatch(t, []string{"X", "Y"}, []string{v.Members[0].Name, v.Members[1].Name})
	assert.True(t, memberByName(t, v, "Y").Disabled)
	assert.Empty(t, selectedNames(v))
	assert.Equal(t, "./assets/images/beach.png", v.BackgroundImage)

	h.clock.Advance(time.Second)
	h.view()
	for _, e := range h.drain() {
		assert.NotEqual(t, events.TypeCountdownTick, e.Type)
	}
}

func TestUpdateSettings_SwitchesLabelLanguage(t *testing.T) {
	labels := &switchingLabels{}
	ctrl := New(Config{Settings: abc(), Labels: labels, Clock: clockwork.NewFakeClockAt(morning())})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	v, err := ctrl.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "en:"+LabelClickToSelect, v.Title)

	german := abc()
	german.Language = "de"
	require.NoError(t, ctrl.UpdateSettings(ctx, german))
	v, err = ctrl.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de:"+LabelClickToSelect, v.Title)

	labels.mu.Lock()
	labels.err = errors.New("no catalog")
	labels.mu.Unlock()
	french := abc()
	french.Language = "fr"
	require.NoError(t, ctrl.UpdateSettings(ctx, french))
	v, err = ctrl.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de:"+LabelClickToSelect, v.Title, "a failed switch keeps the previous language")
}

func TestSettingsUpdatesChannel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(morning())
	updates := make(chan models.Settings, 1)
	ctrl := New(Config{Settings: abc(), SettingsUpdates: updates, Clock: clock, Rand: rand.New(rand.NewSource(1))})
	rec := &eventRecorder{ch: make(chan events.Event, 16)}
	ctrl.AddListener(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	updates <- testSettings(models.TeamMember{Name: "Solo"})
	select {
	case e := <-rec.ch:
		assert.Equal(t, events.TypeSettingsChanged, e.Type)
		assert.Equal(t, "Solo", e.State.Members[0].Name)
	case <-time.After(waitTimeout):
		t.Fatal("settings update not applied")
	}

	close(updates)
	_, err := ctrl.View(ctx)
	assert.NoError(t, err, "a closed updates channel does not stop the loop")
}

func TestStoppedController(t *testing.T) {
	ctrl := New(Config{Settings: abc(), Clock: clockwork.NewFakeClockAt(morning())})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	_, err := ctrl.View(context.Background())
	require.NoError(t, err)
	assert.True(t, ctrl.Running())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, ctrl.Running())

	assert.ErrorIs(t, ctrl.TriggerPick(context.Background()), ErrControllerStopped)
	_, err = ctrl.View(context.Background())
	assert.ErrorIs(t, err, ErrControllerStopped)
	assert.ErrorIs(t, ctrl.Run(context.Background()), ErrAlreadyRunning)
}

func TestRun_ReportsActiveSessionOnShutdown(t *testing.T) {
	h := start(t, abc(), 21, morning())
	made := h.reveal()
	h.tick()

	require.NoError(t, h.stop())

	completed := parse[events.SessionCompletedPayload](t, h.waitFor(events.TypeSessionCompleted))
	assert.Equal(t, made.SessionID, completed.SessionID)
	assert.Equal(t, made.Member, completed.Member)
	assert.Equal(t, events.OutcomeReset, completed.Outcome)
	require.NotNil(t, completed.TimeStarted)
	assert.Equal(t, 119, *completed.TimeStarted)
	assert.Empty(t, h.drain(), "nothing is emitted after the session report")
}

func TestRun_IdleShutdownEmitsNothing(t *testing.T) {
	h := start(t, abc(), 22, morning())
	h.drain()

	require.NoError(t, h.stop())
	assert.Empty(t, h.drain())
}

func TestCommand_ContextCancelledBeforeRun(t *testing.T) {
	ctrl := New(Config{Settings: abc(), Clock: clockwork.NewFakeClockAt(morning())})

	assert.False(t, ctrl.Running())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ctrl.Reset(ctx), context.DeadlineExceeded)
}
