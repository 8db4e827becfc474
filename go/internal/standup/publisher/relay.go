package publisher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/events"
)

// EventPublisher delivers one event to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type RelayConfig struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// FlushTimeout bounds publishing of queued events on shutdown.
	FlushTimeout time.Duration
	// Skip lists event types that are not forwarded.
	Skip []events.Type
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BufferSize:   256,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		FlushTimeout: 5 * time.Second,
	}
}

// Relay forwards controller events to an EventPublisher from its own
// goroutine so the controller loop never waits on the network.
type Relay struct {
	publisher EventPublisher
	config    RelayConfig
	skip      map[events.Type]bool
	queue     chan events.Event

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	mu            sync.Mutex
	lastPublished time.Time
}

// Stats is a point-in-time view of relay throughput.
type Stats struct {
	Published     uint64
	Failed        uint64
	Dropped       uint64
	Pending       int
	LastPublished time.Time
}

func NewRelay(p EventPublisher, cfg RelayConfig) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultRelayConfig().BufferSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultRelayConfig().FlushTimeout
	}
	skip := make(map[events.Type]bool, len(cfg.Skip))
	for _, t := range cfg.Skip {
		skip[t] = true
	}
	return &Relay{
		publisher: p,
		config:    cfg,
		skip:      skip,
		queue:     make(chan events.Event, cfg.BufferSize),
	}
}

func (r *Relay) OnEvent(e events.Event) {
	if r.skip[e.Type] {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
		log.Warn().
			Str("event_id", e.ID.String()).
			Str("event_type", string(e.Type)).
			Msg("publish queue full - dropping event")
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// left within FlushTimeout.
func (r *Relay) Run(ctx context.Context) {
	log.Info().
		Int("buffer", r.config.BufferSize).
		Int("max_retries", r.config.MaxRetries).
		Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			r.flush()
			log.Info().Int("pending", len(r.queue)).Msg("event relay stopped")
			return
		case e := <-r.queue:
			if ctx.Err() != nil {
				r.flush(e)
				log.Info().Int("pending", len(r.queue)).Msg("event relay stopped")
				return
			}
			r.deliver(ctx, e)
		}
	}
}

// flush publishes pending and then the queue on a fresh context.
func (r *Relay) flush(pending ...events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.FlushTimeout)
	defer cancel()
	for _, e := range pending {
		r.deliver(ctx, e)
	}
	for ctx.Err() == nil {
		select {
		case e := <-r.queue:
			r.deliver(ctx, e)
		default:
			return
		}
	}
}

func (r *Relay) deliver(ctx context.Context, e events.Event) {
	if err := r.publishWithRetry(ctx, e); err != nil {
		r.failed.Add(1)
		log.Error().
			Err(err).
			Str("event_id", e.ID.String()).
			Str("event_type", string(e.Type)).
			Msg("failed to publish event")
		return
	}
	r.published.Add(1)
	r.mu.Lock()
	r.lastPublished = time.Now()
	r.mu.Unlock()
}

func (r *Relay) publishWithRetry(ctx context.Context, e events.Event) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := r.publisher.Publish(ctx, e); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", e.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		return nil
	}
	return lastErr
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	last := r.lastPublished
	r.mu.Unlock()
	return Stats{
		Published:     r.published.Load(),
		Failed:        r.failed.Load(),
		Dropped:       r.dropped.Load(),
		Pending:       len(r.queue),
		LastPublished: last,
	}
}
