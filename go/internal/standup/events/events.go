package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
)

// Type names a standup event.
type Type string

const (
	TypePickStarted      Type = "PickStarted"
	TypeRevealStep       Type = "RevealStep"
	TypePickMade         Type = "PickMade"
	TypeTurnPassed       Type = "TurnPassed"
	TypeCountdownTick    Type = "CountdownTick"
	TypeReminderFired    Type = "ReminderFired"
	TypeSessionCompleted Type = "SessionCompleted"
	TypeSessionReset     Type = "SessionReset"
	TypeMemberToggled    Type = "MemberToggled"
	TypeStandupTime      Type = "StandupTime"
	TypeSettingsChanged  Type = "SettingsChanged"
	TypeContrastChanged  Type = "ContrastChanged"
	TypeAudioChanged     Type = "AudioChanged"
)

// Event is emitted by the controller after every visible state change.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	// State is the view as it stood right after the change.
	State models.View `json:"state"`
}

// Listener receives controller events. OnEvent runs on the controller loop
// and must not block.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Session outcomes recorded in SessionCompletedPayload.
const (
	OutcomeCompleted = "completed"
	OutcomeReset     = "reset"
	OutcomePreempted = "preempted"
)

// PickStartedPayload is sent when a reveal begins.
type PickStartedPayload struct {
	SessionID  string    `json:"session_id"`
	PoolSize   int       `json:"pool_size"`
	Candidates []string  `json:"candidates"`
	StartedAt  time.Time `json:"started_at"`
}

// RevealStepPayload is sent for every animation step.
type RevealStepPayload struct {
	SessionID string `json:"session_id"`
	Step      int    `json:"step"`
	Steps     int    `json:"steps"`
}

// PickMadePayload is sent when the outcome is fixed and the countdown starts.
type PickMadePayload struct {
	SessionID  string    `json:"session_id"`
	Member     string    `json:"member"`
	PlannedSec int       `json:"planned_sec"`
	MadeAt     time.Time `json:"made_at"`
}

// TurnPassedPayload is sent when the session moves on to the next member.
type TurnPassedPayload struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// CountdownTickPayload is sent every second of a running session.
type CountdownTickPayload struct {
	SessionID        string `json:"session_id"`
	Member           string `json:"member"`
	RemainingSec     int    `json:"remaining_sec"`
	RemainingMinutes int    `json:"remaining_minutes"`
}

// ReminderFiredPayload is sent once per session when the reminder cue plays.
type ReminderFiredPayload struct {
	SessionID    string `json:"session_id"`
	RemainingSec int    `json:"remaining_sec"`
	Sound        string `json:"sound"`
}

// SessionCompletedPayload closes a session, whichever way it ended.
type SessionCompletedPayload struct {
	SessionID   string    `json:"session_id"`
	Member      string    `json:"member"`
	Outcome     string    `json:"outcome"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	PlannedSec  int       `json:"planned_sec"`
	TimeStarted *int      `json:"time_started,omitempty"`
	TimeEnded   *int      `json:"time_ended,omitempty"`
}

// MemberToggledPayload is sent when a member is enabled or disabled.
type MemberToggledPayload struct {
	Member   string `json:"member"`
	Disabled bool   `json:"disabled"`
}

// StandupTimePayload is sent when the wall clock reaches the standup time.
type StandupTimePayload struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Sound  string `json:"sound,omitempty"`
}

// SettingsChangedPayload is sent after a new settings snapshot is installed.
type SettingsChangedPayload struct {
	Members       int  `json:"members"`
	WatcherActive bool `json:"watcher_active"`
}

// ContrastChangedPayload is sent when the display contrast is toggled.
type ContrastChangedPayload struct {
	DefaultColor bool `json:"default_color"`
}

// AudioChangedPayload is sent when a sound starts or stops.
type AudioChangedPayload struct {
	Playing bool   `json:"playing"`
	Sound   string `json:"sound,omitempty"`
}

// SessionResetPayload is sent by an explicit reset.
type SessionResetPayload struct {
	Members int `json:"members"`
}

// ParsePayload decodes the event data into the payload struct for its type.
// Unknown types yield nil.
func ParsePayload(event Event) (interface{}, error) {
	var payload interface{}
	switch event.Type {
	case TypePickStarted:
		payload = &PickStartedPayload{}
	case TypeRevealStep:
		payload = &RevealStepPayload{}
	case TypePickMade:
		payload = &PickMadePayload{}
	case TypeTurnPassed:
		payload = &TurnPassedPayload{}
	case TypeCountdownTick:
		payload = &CountdownTickPayload{}
	case TypeReminderFired:
		payload = &ReminderFiredPayload{}
	case TypeSessionCompleted:
		payload = &SessionCompletedPayload{}
	case TypeSessionReset:
		payload = &SessionResetPayload{}
	case TypeMemberToggled:
		payload = &MemberToggledPayload{}
	case TypeStandupTime:
		payload = &StandupTimePayload{}
	case TypeSettingsChanged:
		payload = &SettingsChangedPayload{}
	case TypeContrastChanged:
		payload = &ContrastChangedPayload{}
	case TypeAudioChanged:
		payload = &AudioChangedPayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
