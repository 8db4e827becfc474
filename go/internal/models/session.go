package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is the audit row written when a standup session ends.
type SessionRecord struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Member      string    `json:"member"`
	Outcome     string    `json:"outcome"` // completed, reset or preempted
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	PlannedSec  int       `json:"planned_sec"`
	TimeStarted *int      `json:"time_started,omitempty"` // remaining seconds at the first tick
	TimeEnded   *int      `json:"time_ended,omitempty"`   // remaining seconds at the last tick
}
