package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/events"
)

// Writer persists session records.
type Writer interface {
	Insert(ctx context.Context, rec models.SessionRecord) error
}

const (
	defaultBuffer = 64
	writeTimeout  = 5 * time.Second
)

// Recorder turns SessionCompleted events into records and writes them off the
// controller loop.
type Recorder struct {
	writer Writer
	queue  chan models.SessionRecord
}

func NewRecorder(writer Writer) *Recorder {
	return &Recorder{
		writer: writer,
		queue:  make(chan models.SessionRecord, defaultBuffer),
	}
}

// OnEvent never blocks; records are dropped when the queue is full.
func (r *Recorder) OnEvent(e events.Event) {
	if e.Type != events.TypeSessionCompleted {
		return
	}
	rec, err := recordFromEvent(e)
	if err != nil {
		log.Error().Err(err).Str("event_id", e.ID.String()).Msg("failed to decode completed session")
		return
	}

	select {
	case r.queue <- rec:
	default:
		log.Warn().Str("session_id", rec.SessionID.String()).Msg("history queue full - dropping session record")
	}
}

// Run writes queued records until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	log.Info().Msg("history recorder started")
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			r.flush()
			log.Info().Msg("history recorder stopped")
			return
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec models.SessionRecord) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := r.writer.Insert(wctx, rec); err != nil {
		log.Error().Err(err).Str("session_id", rec.SessionID.String()).Msg("failed to record session")
		return
	}
	log.Debug().
		Str("session_id", rec.SessionID.String()).
		Str("member", rec.Member).
		Str("outcome", rec.Outcome).
		Msg("session recorded")
}

func recordFromEvent(e events.Event) (models.SessionRecord, error) {
	payload, err := events.ParsePayload(e)
	if err != nil {
		return models.SessionRecord{}, err
	}
	p := payload.(*events.SessionCompletedPayload)

	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return models.SessionRecord{}, err
	}
	return models.SessionRecord{
		// The event id doubles as the row id so a replayed event is ignored.
		ID:          e.ID,
		SessionID:   sessionID,
		Member:      p.Member,
		Outcome:     p.Outcome,
		StartedAt:   p.StartedAt,
		EndedAt:     p.EndedAt,
		PlannedSec:  p.PlannedSec,
		TimeStarted: p.TimeStarted,
		TimeEnded:   p.TimeEnded,
	}, nil
}
