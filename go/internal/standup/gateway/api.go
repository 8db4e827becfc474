package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/settings"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/controller"
)

// Picker is the controller surface the HTTP API drives.
type Picker interface {
	TriggerPick(ctx context.Context) error
	Reset(ctx context.Context) error
	MoveNext(ctx context.Context) error
	ToggleDisabled(ctx context.Context, name string) error
	ToggleContrast(ctx context.Context) (bool, error)
	StopAudio(ctx context.Context) error
	View(ctx context.Context) (models.View, error)
}

// SettingsStore reads and saves the settings snapshot.
type SettingsStore interface {
	Current() models.Settings
	Save(cfg models.Settings) error
}

// HistoryReader lists past sessions.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.SessionRecord, error)
}

const maxSettingsBody = 1 << 20

// APIHandler serves the picker's JSON API.
type APIHandler struct {
	picker   Picker
	settings SettingsStore
	history  HistoryReader
}

// NewAPIHandler builds the handler. history may be nil.
func NewAPIHandler(picker Picker, store SettingsStore, history HistoryReader) *APIHandler {
	return &APIHandler{picker: picker, settings: store, history: history}
}

// RegisterRoutes registers the API routes with an HTTP mux
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", h.HandleGetState)
	mux.HandleFunc("POST /api/pick", h.HandlePick)
	mux.HandleFunc("POST /api/reset", h.action(h.picker.Reset))
	mux.HandleFunc("POST /api/next", h.action(h.picker.MoveNext))
	mux.HandleFunc("POST /api/audio/stop", h.action(h.picker.StopAudio))
	mux.HandleFunc("POST /api/members/{name}/toggle", h.HandleToggleMember)
	mux.HandleFunc("POST /api/contrast", h.HandleToggleContrast)
	mux.HandleFunc("GET /api/settings", h.HandleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.HandlePutSettings)
	mux.HandleFunc("GET /api/history", h.HandleGetHistory)
}

// HandleGetState handles GET /api/state
func (h *APIHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	view, err := h.picker.View(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandlePick handles POST /api/pick
func (h *APIHandler) HandlePick(w http.ResponseWriter, r *http.Request) {
	if err := h.picker.TriggerPick(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.writeView(w, r, http.StatusAccepted)
}

// HandleToggleMember handles POST /api/members/{name}/toggle
func (h *APIHandler) HandleToggleMember(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.picker.ToggleDisabled(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	h.writeView(w, r, http.StatusOK)
}

// HandleToggleContrast handles POST /api/contrast
func (h *APIHandler) HandleToggleContrast(w http.ResponseWriter, r *http.Request) {
	value, err := h.picker.ToggleContrast(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"defaultColor": value})
}

// HandleGetSettings handles GET /api/settings
func (h *APIHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Current())
}

// HandlePutSettings handles PUT /api/settings
func (h *APIHandler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	var cfg models.Settings
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settings body: " + err.Error()})
		return
	}

	if err := h.settings.Save(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Current())
}

// HandleGetHistory handles GET /api/history?limit=n
func (h *APIHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history is not enabled"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []models.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *APIHandler) action(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		h.writeView(w, r, http.StatusOK)
	}
}

func (h *APIHandler) writeView(w http.ResponseWriter, r *http.Request, status int) {
	view, err := h.picker.View(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, view)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrNoEligibleCandidates),
		errors.Is(err, controller.ErrNoSelection),
		errors.Is(err, controller.ErrNoNextMember):
		return http.StatusConflict
	case errors.Is(err, controller.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrControllerStopped),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
