package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/countdown"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/events"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/selection"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/shuffle"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/watcher"
)

// Label keys looked up for every user-facing text.
const (
	LabelClickToSelect = "PAGES.STANDUP_PICKER.CLICK_TO_SELECT_TEAM_MEMBER"
	LabelPleaseWait    = "PAGES.STANDUP_PICKER.PLEASE_WAIT"
	LabelStartsToday   = "PAGES.STANDUP_PICKER.STARTS_TODAY"
	LabelRemainingTime = "PAGES.STANDUP_PICKER.REMAINING_STANDUP_TIME"
)

// DefaultColorPreferenceKey stores the display contrast toggle.
const DefaultColorPreferenceKey = "DEFAULT_COLOR"

var (
	ErrNoEligibleCandidates = selection.ErrNoEligibleCandidates
	ErrMemberNotFound       = errors.New("member not found")
	ErrNoSelection          = errors.New("no member selected")
	ErrNoNextMember         = errors.New("no enabled member after the current one")
	ErrControllerStopped    = errors.New("controller is not running")
	ErrAlreadyRunning       = errors.New("controller is already running")
)

// Labeler looks up user-facing text by key.
type Labeler interface {
	Label(key string, params map[string]interface{}) string
}

// LanguageSwitcher is implemented by labelers that can follow the
// settings language.
type LanguageSwitcher interface {
	SetLanguage(language string) error
}

// SoundPlayer plays one sound at a time. Play returns false when the request
// was dropped because another sound is still playing.
type SoundPlayer interface {
	Play(path string) bool
	Stop()
	IsPlaying() bool
	Finished() <-chan struct{}
}

// PreferenceStore persists simple UI preferences.
type PreferenceStore interface {
	GetBool(ctx context.Context, key string) (value bool, found bool, err error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Config wires a Controller. Settings is required; everything else may be nil.
type Config struct {
	Settings        models.Settings
	SettingsUpdates <-chan models.Settings
	Labels          Labeler
	Player          SoundPlayer
	Preferences     PreferenceStore
	// Clock defaults to the real clock. Tests pass a clockwork.FakeClock.
	Clock clockwork.Clock
	Rand  *rand.Rand
}

// activeSession tracks the member currently holding the floor.
type activeSession struct {
	id         uuid.UUID
	member     string
	startedAt  time.Time
	plannedSec int
}

// Controller orchestrates picking, revealing and timing the standup.
//
// All state below the loop marker is owned by the Run goroutine. Public
// operations are queued onto that goroutine, so ticks, commands and settings
// updates are handled one at a time and never race.
type Controller struct {
	clock           clockwork.Clock
	labels          Labeler
	player          SoundPlayer
	prefs           PreferenceStore
	shuffler        *shuffle.Shuffler
	settingsUpdates <-chan models.Settings

	cmdCh   chan func()
	done    chan struct{}
	running atomic.Bool

	// contrastLock orders each contrast flip with its save.
	contrastLock chan struct{}

	listenersMu sync.Mutex
	listeners   []events.Listener

	// loop-owned
	settings     models.Settings
	roster       []models.Member
	title        string
	timeText     string
	defaultColor bool
	revealed     bool
	watch        *watcher.MinuteWatcher

	session      *selection.Session
	sessionID    uuid.UUID
	revealTicker clockwork.Ticker

	countdown       *countdown.Countdown
	countdownGen    uint64
	countdownTicker clockwork.Ticker
	current         *activeSession
}

// New creates a controller holding a freshly shuffled roster from cfg.Settings.
func New(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &Controller{
		clock:           clock,
		labels:          cfg.Labels,
		player:          cfg.Player,
		prefs:           cfg.Preferences,
		shuffler:        shuffle.NewShuffler(cfg.Rand),
		settingsUpdates: cfg.SettingsUpdates,
		cmdCh:           make(chan func()),
		contrastLock:    make(chan struct{}, 1),
		done:            make(chan struct{}),
		defaultColor:    true,
		countdown:       countdown.New(),
	}
	c.installSettings(cfg.Settings)
	c.title = c.label(LabelClickToSelect, nil)
	return c
}

// AddListener registers l for every event emitted from now on.
func (c *Controller) AddListener(l events.Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Run processes commands and timer ticks until ctx is cancelled. A session
// still running at that point is reported with outcome reset. Every timer is
// released before Run returns and no listener is called afterwards.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.loadPreferences(ctx)

	minuteTicker := c.clock.NewTicker(watcher.PollInterval)
	var soundFinished <-chan struct{}
	if c.player != nil {
		soundFinished = c.player.Finished()
	}

	defer func() {
		stopTicker(minuteTicker)
		c.cancelReveal()
		c.endSession(events.OutcomeReset)
		c.haltTimers()
		close(c.done)
		log.Info().Msg("standup controller stopped")
	}()

	hour, minute := c.watch.Target()
	log.Info().
		Int("members", len(c.roster)).
		Bool("watcher_enabled", c.watch.Enabled()).
		Int("standup_hour", hour).
		Int("standup_minute", minute).
		Msg("standup controller started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.cmdCh:
			fn()
		case <-tickerChan(c.revealTicker):
			c.handleRevealStep()
		case <-tickerChan(c.countdownTicker):
			c.handleCountdownTick()
		case <-minuteTicker.Chan():
			c.handleMinuteTick()
		case s, ok := <-c.settingsUpdates:
			if !ok {
				c.settingsUpdates = nil
				continue
			}
			c.applySettings(s)
		case <-soundFinished:
			c.emit(events.TypeAudioChanged, events.AudioChangedPayload{Playing: false})
		}
	}
}

// Running reports whether the event loop is active.
func (c *Controller) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return c.running.Load()
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.cmdCh <- func() { reply <- fn() }:
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-reply
}

// TriggerPick starts a new reveal. It returns ErrNoEligibleCandidates, with
// nothing changed, when every member is disabled.
func (c *Controller) TriggerPick(ctx context.Context) error {
	return c.do(ctx, c.triggerPick)
}

// Reset cancels any reveal or countdown and reshuffles the roster.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.reset()
		return nil
	})
}

// ToggleDisabled flips the disabled flag of the named member unless that
// member is the current pick.
func (c *Controller) ToggleDisabled(ctx context.Context, name string) error {
	return c.do(ctx, func() error {
		return c.toggleDisabled(name)
	})
}

// MoveNext hands the floor to the next enabled member in display order.
func (c *Controller) MoveNext(ctx context.Context) error {
	return c.do(ctx, c.moveNext)
}

// StopAudio stops whatever sound is playing.
func (c *Controller) StopAudio(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.player != nil {
			c.player.Stop()
		}
		return nil
	})
}

// UpdateSettings installs a new settings snapshot.
func (c *Controller) UpdateSettings(ctx context.Context, s models.Settings) error {
	return c.do(ctx, func() error {
		c.applySettings(s)
		return nil
	})
}

// ToggleContrast flips the display contrast and persists the new value.
// Concurrent toggles are saved in the order they were applied.
func (c *Controller) ToggleContrast(ctx context.Context) (bool, error) {
	select {
	case c.contrastLock <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-c.contrastLock }()

	var value bool
	err := c.do(ctx, func() error {
		c.defaultColor = !c.defaultColor
		value = c.defaultColor
		c.emit(events.TypeContrastChanged, events.ContrastChangedPayload{DefaultColor: value})
		return nil
	})
	if err != nil {
		return false, err
	}
	if c.prefs != nil {
		if err := c.prefs.SetBool(ctx, DefaultColorPreferenceKey, value); err != nil {
			return value, fmt.Errorf("persist contrast preference: %w", err)
		}
	}
	return value, nil
}

// View returns the current presentation projection.
func (c *Controller) View(ctx context.Context) (models.View, error) {
	var v models.View
	err := c.do(ctx, func() error {
		v = c.view()
		return nil
	})
	return v, err
}

func (c *Controller) view() models.View {
	return models.View{
		Title:           c.title,
		Time:            c.timeText,
		Members:         models.CloneMembers(c.roster),
		DefaultColor:    c.defaultColor,
		Shuffling:       c.session != nil,
		Revealed:        c.revealed,
		BackgroundImage: c.settings.BackgroundImage(),
		AudioPlaying:    c.player != nil && c.player.IsPlaying(),
	}
}

func (c *Controller) loadPreferences(ctx context.Context) {
	if c.prefs == nil {
		return
	}
	value, found, err := c.prefs.GetBool(ctx, DefaultColorPreferenceKey)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load contrast preference")
		return
	}
	if found {
		c.defaultColor = value
	}
}

func (c *Controller) label(key string, params map[string]interface{}) string {
	if c.labels == nil {
		return key
	}
	return c.labels.Label(key, params)
}

func (c *Controller) emit(t events.Type, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to marshal event payload")
		return
	}
	event := events.Event{
		ID:        uuid.New(),
		Type:      t,
		Timestamp: c.clock.Now(),
		Data:      data,
		State:     c.view(),
	}

	c.listenersMu.Lock()
	listeners := append([]events.Listener(nil), c.listeners...)
	c.listenersMu.Unlock()

	for _, l := range listeners {
		l.OnEvent(event)
	}
}

func (c *Controller) play(path string) bool {
	if c.player == nil || path == "" {
		return false
	}
	if !c.player.Play(path) {
		log.Debug().Str("sound", path).Msg("sound already playing - request dropped")
		return false
	}
	c.emit(events.TypeAudioChanged, events.AudioChangedPayload{Playing: true, Sound: path})
	return true
}
