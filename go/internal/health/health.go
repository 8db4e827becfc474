package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/publisher"
)

const checkTimeout = 5 * time.Second

// Status is the result of one health check.
type Status struct {
	Healthy           bool            `json:"healthy"`
	ControllerRunning bool            `json:"controller_running"`
	Connections       int             `json:"connections"`
	EventsPublished   uint64          `json:"events_published"`
	EventsFailed      uint64          `json:"events_failed"`
	EventsDropped     uint64          `json:"events_dropped"`
	PendingEvents     int             `json:"pending_events"`
	LastPublished     *time.Time      `json:"last_published,omitempty"`
	Dependencies      map[string]bool `json:"dependencies"`
	Errors            []string        `json:"errors"`
}

type ControllerState interface {
	Running() bool
}

type ConnectionCounter interface {
	ConnectionCount() int
}

type RelayStats interface {
	Stats() publisher.Stats
}

// Probe returns nil when the dependency is reachable.
type Probe func(ctx context.Context) error

type dependency struct {
	name  string
	probe Probe
}

// Checker aggregates the state of the controller and its optional
// collaborators.
type Checker struct {
	controller   ControllerState
	connections  ConnectionCounter
	relay        RelayStats
	dependencies []dependency
	pendingLimit int
}

func NewChecker(controller ControllerState, connections ConnectionCounter) *Checker {
	return &Checker{
		controller:   controller,
		connections:  connections,
		pendingLimit: 200,
	}
}

// WithRelay includes publish statistics in the report.
func (h *Checker) WithRelay(relay RelayStats) *Checker {
	h.relay = relay
	return h
}

// AddDependency registers an external system; a failing probe marks the
// process unhealthy.
func (h *Checker) AddDependency(name string, probe Probe) *Checker {
	h.dependencies = append(h.dependencies, dependency{name: name, probe: probe})
	return h
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy:      true,
		Dependencies: make(map[string]bool, len(h.dependencies)),
		Errors:       []string{},
	}

	status.ControllerRunning = h.controller.Running()
	if !status.ControllerRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "controller not running")
	}

	if h.connections != nil {
		status.Connections = h.connections.ConnectionCount()
	}

	if h.relay != nil {
		stats := h.relay.Stats()
		status.EventsPublished = stats.Published
		status.EventsFailed = stats.Failed
		status.EventsDropped = stats.Dropped
		status.PendingEvents = stats.Pending
		if !stats.LastPublished.IsZero() {
			last := stats.LastPublished
			status.LastPublished = &last
		}
		if stats.Pending > h.pendingLimit {
			status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", stats.Pending))
		}
	}

	for _, dep := range h.dependencies {
		if err := dep.probe(ctx); err != nil {
			status.Dependencies[dep.name] = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", dep.name, err))
			continue
		}
		status.Dependencies[dep.name] = true
	}

	return status
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}

// ServeMetrics writes the status in the Prometheus text format.
func (h *Checker) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if _, err := w.Write([]byte(Export(h.Check(ctx)))); err != nil {
		log.Error().Err(err).Msg("failed to write metrics response")
	}
}

func (h *Checker) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /health", h)
	mux.HandleFunc("GET /metrics", h.ServeMetrics)
}

// Export renders status as Prometheus gauges and counters.
func Export(status Status) string {
	var b strings.Builder
	gauge := func(name, help string, value interface{}) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n\n", name, help, name, name, value)
	}
	counter := func(name, help string, value uint64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, value)
	}

	gauge("standup_healthy", "Whether the picker is healthy", boolValue(status.Healthy))
	gauge("standup_controller_running", "Whether the controller loop is running", boolValue(status.ControllerRunning))
	gauge("standup_websocket_connections", "Open WebSocket connections", status.Connections)
	counter("standup_events_published_total", "Events published to the broker", status.EventsPublished)
	counter("standup_events_failed_total", "Events that failed every publish attempt", status.EventsFailed)
	counter("standup_events_dropped_total", "Events dropped because the publish queue was full", status.EventsDropped)
	gauge("standup_pending_events", "Events waiting to be published", status.PendingEvents)

	var last int64
	if status.LastPublished != nil {
		last = status.LastPublished.Unix()
	}
	gauge("standup_last_published_timestamp", "Unix timestamp of the last published event", last)

	for name, up := range status.Dependencies {
		fmt.Fprintf(&b, "standup_dependency_up{name=%q} %d\n", name, boolValue(up))
	}
	return b.String()
}

func boolValue(v bool) int {
	if v {
		return 1
	}
	return 0
}
