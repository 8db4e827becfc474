package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
)

// SnapshotType tags the first frame every new connection receives.
const SnapshotType = "Snapshot"

// ViewProvider returns the current view.
type ViewProvider interface {
	View(ctx context.Context) (models.View, error)
}

type snapshot struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	State     models.View `json:"state"`
}

// WebSocketHandler handles WebSocket upgrade requests
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	views             ViewProvider
}

func NewWebSocketHandler(cm *ConnectionManager, views ViewProvider) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, views: views}
}

// HandleConnection upgrades the request and streams events to the client,
// starting with a snapshot of the current view.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	view, err := h.views.View(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	initial, err := json.Marshal(snapshot{Type: SnapshotType, Timestamp: time.Now().UTC(), State: view})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot")
		http.Error(w, "failed to build snapshot", http.StatusInternalServerError)
		return
	}

	// The upgrader has already written an HTTP error on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, initial); err != nil {
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"total_connections": h.connectionManager.ConnectionCount()})
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.HandleConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
