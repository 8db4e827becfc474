package selection

import (
	"errors"
	"sort"
	"time"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/shuffle"
)

// StepInterval is the reveal cadence.
const StepInterval = 500 * time.Millisecond

var (
	ErrNoEligibleCandidates = errors.New("no eligible candidates")
	ErrSessionCancelled     = errors.New("selection session cancelled")
	ErrRevealInProgress     = errors.New("reveal still in progress")
)

// Result is the terminal outcome of a session.
type Result struct {
	Outcome models.Member
	// Roster is the display order with only the outcome selected, outcome first.
	Roster []models.Member
}

// Session reveals one pick out of the candidate pool.
//
// It never writes to the roster it is given: every step and the completion
// return new slices, and the owner decides what to display.
type Session struct {
	shuffler  *shuffle.Shuffler
	pool      []models.Member
	cursor    int
	cancelled bool
	completed bool
}

// Start computes the candidate pool from the members not disabled right now.
func Start(shuffler *shuffle.Shuffler, allMembers []models.Member) (*Session, error) {
	var pool []models.Member
	for _, m := range allMembers {
		if !m.Disabled {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoEligibleCandidates
	}
	return &Session{
		shuffler: shuffler,
		pool:     pool,
	}, nil
}

// Pool returns a copy of the candidates fixed at start.
func (s *Session) Pool() []models.Member {
	return models.CloneMembers(s.pool)
}

// Steps is the total number of reveal steps, one per candidate.
func (s *Session) Steps() int {
	return len(s.pool)
}

// Cursor is the number of steps taken so far.
func (s *Session) Cursor() int {
	return s.cursor
}

// Exhausted reports whether every reveal step has been taken.
func (s *Session) Exhausted() bool {
	return s.cursor >= len(s.pool)
}

// Active reports whether the session can still step or complete.
func (s *Session) Active() bool {
	return !s.cancelled && !s.completed
}

// Step advances the cursor and returns a reshuffled display of current.
// It returns false once the pool is exhausted or the session is over.
func (s *Session) Step(current []models.Member) ([]models.Member, bool) {
	if !s.Active() || s.Exhausted() {
		return nil, false
	}
	s.cursor++
	return s.shuffler.Shuffle(current), true
}

// Complete draws the outcome from the pool, independently of the animation.
func (s *Session) Complete(current []models.Member) (Result, error) {
	if s.cancelled {
		return Result{}, ErrSessionCancelled
	}
	if !s.Exhausted() {
		return Result{}, ErrRevealInProgress
	}
	s.completed = true

	outcome := s.pool[s.shuffler.Intn(len(s.pool))]
	outcome.Selected = true

	roster := models.CloneMembers(current)
	for i := range roster {
		roster[i].Selected = roster[i].Name == outcome.Name
	}
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].Selected && !roster[j].Selected
	})

	return Result{Outcome: outcome, Roster: roster}, nil
}

// Cancel discards the session. Calling it more than once is harmless.
func (s *Session) Cancel() {
	s.cancelled = true
}
