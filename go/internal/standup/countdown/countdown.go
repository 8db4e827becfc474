package countdown

import (
	"errors"
	"time"
)

// TickInterval is the countdown cadence.
const TickInterval = time.Second

var ErrInvalidDuration = errors.New("countdown duration must be positive")

// State of a countdown.
type State int

const (
	Idle State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Tick is what one elapsed second produces.
type Tick struct {
	Generation uint64
	Elapsed    int
	Remaining  int
	Finished   bool
	// Reminder is set on the single tick where the reminder is due.
	Reminder bool
}

// Countdown is a single-shot, second-granularity countdown.
//
// Every Start hands out a new generation. Ticks carrying an older generation
// are ignored, so a tick scheduled for a stopped countdown can never leak into
// the next one.
type Countdown struct {
	state          State
	generation     uint64
	duration       int
	remaining      int
	reminderOffset int
	reminderFired  bool
}

// New returns an idle countdown.
func New() *Countdown {
	return &Countdown{}
}

// Start begins a countdown of durationSec seconds. The reminder is due when
// reminderOffsetSec seconds remain; offsets outside (0, durationSec) disable it.
// Starting while running replaces the running countdown.
func (c *Countdown) Start(durationSec, reminderOffsetSec int) (uint64, error) {
	if durationSec <= 0 {
		return 0, ErrInvalidDuration
	}
	c.generation++
	c.state = Running
	c.duration = durationSec
	c.remaining = durationSec
	c.reminderOffset = reminderOffsetSec
	c.reminderFired = reminderOffsetSec <= 0 || reminderOffsetSec >= durationSec
	return c.generation, nil
}

// Tick advances the countdown by one second.
// It returns false when gen is stale or the countdown is not running.
func (c *Countdown) Tick(gen uint64) (Tick, bool) {
	if gen != c.generation || c.state != Running {
		return Tick{}, false
	}

	c.remaining--
	t := Tick{
		Generation: gen,
		Elapsed:    c.duration - c.remaining,
		Remaining:  c.remaining,
	}

	if !c.reminderFired && c.remaining <= c.reminderOffset {
		c.reminderFired = true
		t.Reminder = true
	}

	if c.remaining <= 0 {
		c.remaining = 0
		c.state = Finished
		t.Finished = true
	}
	return t, true
}

// Stop returns the countdown to Idle and invalidates outstanding ticks.
func (c *Countdown) Stop() {
	if c.state == Idle {
		return
	}
	c.state = Idle
	c.generation++
	c.remaining = 0
}

func (c *Countdown) State() State { return c.state }

func (c *Countdown) Remaining() int { return c.remaining }

func (c *Countdown) Duration() int { return c.duration }

func (c *Countdown) Generation() uint64 { return c.generation }

// RemainingMinutes rounds seconds to the nearest whole minute, halves rounding up.
func RemainingMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 30) / 60
}
