// Package network - api.go
// Read-only HTTP API next to the socket: leaderboard, session history,
// live connections and health.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/engine"
	"github.com/MRamiBalles/coinrush/server/internal/infra/storage"
	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
)

// MaxPageSize caps every limit query parameter.
const MaxPageSize = 100

// LeaderboardReader returns top players by weekly score.
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]storage.PlayerRecord, error)
}

// SessionHistory returns recently settled sessions.
type SessionHistory interface {
	Recent(ctx context.Context, limit int) ([]storage.SessionRecord, error)
}

// StatusReader reports on the live session.
type StatusReader interface {
	Status(ctx context.Context) (engine.Status, error)
}

// APIBridge serves the HTTP read endpoints.
type APIBridge struct {
	leaderboard  LeaderboardReader
	sessions     SessionHistory
	status       StatusReader
	hub          *Hub
	defaultLimit int
	logger       *logger.Logger
}

// NewAPIBridge creates the HTTP API handler set.
func NewAPIBridge(lb LeaderboardReader, sessions SessionHistory, status StatusReader, hub *Hub, defaultLimit int, log *logger.Logger) *APIBridge {
	if defaultLimit <= 0 || defaultLimit > MaxPageSize {
		defaultLimit = 10
	}
	return &APIBridge{
		leaderboard:  lb,
		sessions:     sessions,
		status:       status,
		hub:          hub,
		defaultLimit: defaultLimit,
		logger:       log,
	}
}

// HandleLeaderboard returns the weekly top N.
// GET /api/leaderboard?limit=N
func (ab *APIBridge) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ab.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, ok := ab.parseLimit(w, r)
	if !ok {
		return
	}

	players, err := ab.leaderboard.Top(r.Context(), limit)
	if err != nil {
		ab.logger.Errorf("Leaderboard query failed: %v", err)
		ab.jsonError(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	ab.jsonSuccess(w, map[string]interface{}{
		"success": true,
		"players": players,
	})
}

// HandleSessions returns recently settled sessions.
// GET /api/sessions?limit=N
func (ab *APIBridge) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ab.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, ok := ab.parseLimit(w, r)
	if !ok {
		return
	}

	sessions, err := ab.sessions.Recent(r.Context(), limit)
	if err != nil {
		ab.logger.Errorf("Session history query failed: %v", err)
		ab.jsonError(w, "failed to load sessions", http.StatusInternalServerError)
		return
	}

	ab.jsonSuccess(w, map[string]interface{}{
		"success":  true,
		"sessions": sessions,
	})
}

// HandleConnections lists the connection registry.
// GET /api/connections
func (ab *APIBridge) HandleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ab.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conns := ab.hub.Connections()
	ab.jsonSuccess(w, map[string]interface{}{
		"success":      true,
		"connections":  conns,
		"online_count": len(conns),
	})
}

// HandleHealth reports the live session. 503 once the engine has stopped.
// GET /health
func (ab *APIBridge) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, err := ab.status.Status(ctx)
	if err != nil {
		ab.jsonError(w, "engine unavailable", http.StatusServiceUnavailable)
		return
	}

	ab.jsonSuccess(w, map[string]interface{}{
		"status":      "ok",
		"session":     st,
		"connections": ab.hub.Count(),
	})
}

// RegisterRoutes sets up the API routes.
func (ab *APIBridge) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/leaderboard", ab.HandleLeaderboard)
	mux.HandleFunc("/api/sessions", ab.HandleSessions)
	mux.HandleFunc("/api/connections", ab.HandleConnections)
	mux.HandleFunc("/health", ab.HandleHealth)
}

// parseLimit writes a 400 and returns false on a bad value.
func (ab *APIBridge) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return ab.defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		ab.jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	return n, true
}

// jsonError sends an error response.
func (ab *APIBridge) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": message})
}

// jsonSuccess sends a success response.
func (ab *APIBridge) jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
