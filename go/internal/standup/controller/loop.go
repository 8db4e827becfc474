package controller

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/countdown"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/events"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/selection"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/watcher"
)

// Everything in this file runs on the Run goroutine.

func (c *Controller) installSettings(s models.Settings) {
	c.settings = s.Clone()
	c.roster = c.shuffler.Shuffle(models.MembersFromTeam(c.settings.StandupPicker.TeamMembers))

	if ls, ok := c.labels.(LanguageSwitcher); ok {
		if err := ls.SetLanguage(c.settings.Language); err != nil {
			log.Warn().Err(err).Str("language", c.settings.Language).Msg("failed to switch label language")
		}
	}

	hour, minute, ok := c.settings.StandupTime()
	if !ok {
		if c.settings.StandupPicker.StandupHour != "" || c.settings.StandupPicker.StandupMinute != "" {
			log.Warn().
				Str("standup_hour", c.settings.StandupPicker.StandupHour).
				Str("standup_minute", c.settings.StandupPicker.StandupMinute).
				Msg("standup time is not valid, daily reminder disabled")
		}
		c.watch = watcher.Disabled()
		return
	}
	c.watch = watcher.New(hour, minute)
}

func (c *Controller) applySettings(s models.Settings) {
	c.cancelReveal()
	c.endSession(events.OutcomeReset)
	c.installSettings(s)
	c.revealed = false
	c.title = c.label(LabelClickToSelect, nil)
	c.timeText = ""

	log.Info().
		Int("members", len(c.roster)).
		Bool("watcher_enabled", c.watch.Enabled()).
		Msg("settings applied")
	c.emit(events.TypeSettingsChanged, events.SettingsChangedPayload{
		Members:       len(c.roster),
		WatcherActive: c.watch.Enabled(),
	})
}

func (c *Controller) triggerPick() error {
	sess, err := selection.Start(c.shuffler, c.roster)
	if err != nil {
		log.Warn().Err(err).Msg("pick requested with no eligible members")
		return err
	}

	c.cancelReveal()
	c.endSession(events.OutcomePreempted)

	for i := range c.roster {
		c.roster[i].Selected = false
		c.roster[i].TimeStarted = nil
		c.roster[i].TimeEnded = nil
	}
	c.session = sess
	c.sessionID = uuid.New()
	c.revealed = false
	c.timeText = ""
	c.title = c.label(LabelPleaseWait, nil)
	c.revealTicker = c.clock.NewTicker(selection.StepInterval)

	candidates := make([]string, 0, len(sess.Pool()))
	for _, m := range sess.Pool() {
		candidates = append(candidates, m.Name)
	}
	log.Info().
		Str("session_id", c.sessionID.String()).
		Int("pool_size", len(candidates)).
		Msg("pick started")
	c.emit(events.TypePickStarted, events.PickStartedPayload{
		SessionID:  c.sessionID.String(),
		PoolSize:   len(candidates),
		Candidates: candidates,
		StartedAt:  c.clock.Now(),
	})
	return nil
}

func (c *Controller) handleRevealStep() {
	if c.session == nil {
		c.stopRevealTicker()
		return
	}

	display, ok := c.session.Step(c.roster)
	if !ok {
		c.cancelReveal()
		return
	}
	c.roster = display
	c.emit(events.TypeRevealStep, events.RevealStepPayload{
		SessionID: c.sessionID.String(),
		Step:      c.session.Cursor(),
		Steps:     c.session.Steps(),
	})

	if !c.session.Exhausted() {
		return
	}

	sess := c.session
	c.session = nil
	c.stopRevealTicker()

	result, err := sess.Complete(c.roster)
	if err != nil {
		log.Error().Err(err).Str("session_id", c.sessionID.String()).Msg("failed to complete reveal")
		return
	}
	c.onPickComplete(result)
}

func (c *Controller) onPickComplete(result selection.Result) {
	now := c.clock.Now()
	c.roster = result.Roster
	c.revealed = true
	c.title = c.label(LabelStartsToday, map[string]interface{}{"name": result.Outcome.Name})
	c.current = &activeSession{
		id:        c.sessionID,
		member:    result.Outcome.Name,
		startedAt: now,
	}

	c.play(c.settings.StandupPicker.SuccessSound)

	duration, ok := c.settings.SessionSeconds()
	if !ok {
		log.Warn().
			Str("standup_time_in_min", c.settings.StandupPicker.StandupTimeInMin).
			Msg("session length is not valid, countdown disabled")
	} else {
		offset, _ := c.settings.ReminderOffsetSeconds()
		gen, err := c.countdown.Start(duration, offset)
		if err != nil {
			log.Error().Err(err).Int("duration_sec", duration).Msg("failed to start countdown")
		} else {
			c.countdownGen = gen
			c.current.plannedSec = duration
			c.countdownTicker = c.clock.NewTicker(countdown.TickInterval)
		}
	}

	log.Info().
		Str("session_id", c.sessionID.String()).
		Str("member", result.Outcome.Name).
		Int("planned_sec", c.current.plannedSec).
		Msg("pick made")
	c.emit(events.TypePickMade, events.PickMadePayload{
		SessionID:  c.sessionID.String(),
		Member:     result.Outcome.Name,
		PlannedSec: c.current.plannedSec,
		MadeAt:     now,
	})
}

func (c *Controller) handleCountdownTick() {
	tick, ok := c.countdown.Tick(c.countdownGen)
	if !ok {
		c.stopCountdownTicker()
		return
	}

	member := ""
	if c.current != nil {
		member = c.current.member
		if i := models.IndexOf(c.roster, member); i >= 0 {
			remaining := tick.Remaining
			if c.roster[i].TimeStarted == nil {
				started := remaining
				c.roster[i].TimeStarted = &started
			}
			c.roster[i].TimeEnded = &remaining
		}
	}

	if tick.Remaining > 0 {
		c.timeText = c.label(LabelRemainingTime, map[string]interface{}{
			"remainingMinutes": countdown.RemainingMinutes(tick.Remaining),
		})
	} else {
		c.timeText = ""
	}

	if tick.Reminder {
		sound := c.settings.StandupPicker.StandupEndReminderSound
		c.play(sound)
		log.Info().Str("member", member).Int("remaining_sec", tick.Remaining).Msg("end of turn reminder")
		c.emit(events.TypeReminderFired, events.ReminderFiredPayload{
			SessionID:    c.sessionID.String(),
			RemainingSec: tick.Remaining,
			Sound:        sound,
		})
	}

	c.emit(events.TypeCountdownTick, events.CountdownTickPayload{
		SessionID:        c.sessionID.String(),
		Member:           member,
		RemainingSec:     tick.Remaining,
		RemainingMinutes: countdown.RemainingMinutes(tick.Remaining),
	})

	if tick.Finished {
		for i := range c.roster {
			c.roster[i].Selected = false
		}
		c.title = c.label(LabelClickToSelect, nil)
		c.timeText = ""
		c.endSession(events.OutcomeCompleted)
	}
}

func (c *Controller) handleMinuteTick() {
	now := c.clock.Now()
	if !c.watch.Matches(now) {
		return
	}

	hour, minute := c.watch.Target()
	payload := events.StandupTimePayload{Hour: hour, Minute: minute}
	if sounds := c.settings.SelectedStandupSounds(); len(sounds) > 0 {
		sound := sounds[c.shuffler.Intn(len(sounds))]
		c.play(sound.Path)
		payload.Sound = sound.Path
	}

	log.Info().Time("now", now).Str("sound", payload.Sound).Msg("standup time reached")
	c.emit(events.TypeStandupTime, payload)
}

func (c *Controller) reset() {
	c.cancelReveal()
	c.endSession(events.OutcomeReset)

	c.roster = c.shuffler.Shuffle(c.roster)
	c.revealed = false
	c.title = c.label(LabelClickToSelect, nil)
	c.timeText = ""

	c.emit(events.TypeSessionReset, events.SessionResetPayload{Members: len(c.roster)})
}

func (c *Controller) toggleDisabled(name string) error {
	i := models.IndexOf(c.roster, name)
	if i < 0 {
		return ErrMemberNotFound
	}
	m := &c.roster[i]
	if m.Selected {
		log.Debug().Str("member", name).Msg("ignoring toggle of the selected member")
		return nil
	}
	m.Disabled = !m.Disabled

	c.emit(events.TypeMemberToggled, events.MemberToggledPayload{Member: m.Name, Disabled: m.Disabled})
	return nil
}

func (c *Controller) moveNext() error {
	from := -1
	for i, m := range c.roster {
		if m.Selected {
			from = i
			break
		}
	}
	if from < 0 {
		return ErrNoSelection
	}

	next := -1
	for j := from + 1; j < len(c.roster); j++ {
		if !c.roster[j].Disabled {
			next = j
			break
		}
	}
	if next < 0 {
		return ErrNoNextMember
	}

	c.roster[from].Selected = false
	c.roster[next].Selected = true
	if c.current != nil {
		c.current.member = c.roster[next].Name
	}
	c.title = c.label(LabelStartsToday, map[string]interface{}{"name": c.roster[next].Name})

	c.emit(events.TypeTurnPassed, events.TurnPassedPayload{
		SessionID: c.sessionID.String(),
		From:      c.roster[from].Name,
		To:        c.roster[next].Name,
	})
	return nil
}

// cancelReveal drops an in-flight reveal without emitting anything.
func (c *Controller) cancelReveal() {
	c.stopRevealTicker()
	if c.session != nil {
		c.session.Cancel()
		c.session = nil
	}
}

// endSession stops the countdown and reports the active session, if any.
func (c *Controller) endSession(outcome string) {
	c.countdown.Stop()
	c.stopCountdownTicker()

	if c.current == nil {
		return
	}
	cur := c.current
	c.current = nil

	payload := events.SessionCompletedPayload{
		SessionID:  cur.id.String(),
		Member:     cur.member,
		Outcome:    outcome,
		StartedAt:  cur.startedAt,
		EndedAt:    c.clock.Now(),
		PlannedSec: cur.plannedSec,
	}
	if i := models.IndexOf(c.roster, cur.member); i >= 0 {
		payload.TimeStarted = c.roster[i].TimeStarted
		payload.TimeEnded = c.roster[i].TimeEnded
	}

	log.Info().
		Str("session_id", payload.SessionID).
		Str("member", cur.member).
		Str("outcome", outcome).
		Msg("session ended")
	c.emit(events.TypeSessionCompleted, payload)
}

// haltTimers releases every timer without notifying listeners.
func (c *Controller) haltTimers() {
	c.cancelReveal()
	c.countdown.Stop()
	c.stopCountdownTicker()
	c.current = nil
	if c.player != nil {
		c.player.Stop()
	}
}

func (c *Controller) stopRevealTicker() {
	stopTicker(c.revealTicker)
	c.revealTicker = nil
}

func (c *Controller) stopCountdownTicker() {
	stopTicker(c.countdownTicker)
	c.countdownTicker = nil
}

// stopTicker stops t and drains a tick that may already be buffered.
func stopTicker(t clockwork.Ticker) {
	if t == nil {
		return
	}
	t.Stop()
	select {
	case <-t.Chan():
	default:
	}
}

// tickerChan returns nil for a missing ticker so its select case never fires.
func tickerChan(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.Chan()
}
