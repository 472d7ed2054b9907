package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/state"
)

// StateResponse is the body of GET /state.
type StateResponse struct {
	state.AudioState
	Connections int `json:"connections"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// routes serves the two JSON side routes; every other path is a WebSocket
// upgrade.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("/", s.handleWebSocket)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	logging.LogConnection(remoteAddr, "connection_accepted")

	logging.Debug("WebSocket upgrade request details",
		zap.String("remote_addr", remoteAddr),
		zap.String("path", r.URL.Path),
		zap.String("host", r.Host),
		zap.String("origin", r.Header.Get("Origin")),
		zap.String("sec_websocket_version", r.Header.Get("Sec-WebSocket-Version")),
		zap.String("user_agent", r.UserAgent()),
	)

	// Upgrade writes the HTTP error response itself on failure.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Invalid WebSocket upgrade request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	if !s.track(remoteAddr, conn) {
		logging.Info("Rejecting connection during shutdown", zap.String("remote_addr", remoteAddr))
		_ = conn.Close()
		return
	}
	defer s.untrack(remoteAddr)

	if err := s.handleConnection(conn, remoteAddr); err != nil {
		logging.Error("WebSocket connection error",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, StateResponse{
		AudioState:  s.cell.Snapshot(),
		Connections: s.GetActiveConnections(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to write JSON response", zap.Error(err))
	}
}
