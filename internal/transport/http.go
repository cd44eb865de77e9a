package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ganot/rpstage/internal/hub"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/websocket"
)

// maxSaveBody caps administrative snapshot uploads.
const maxSaveBody = 8 << 20

// Game is the hub surface the transport drives.
type Game interface {
	Attach(p hub.Peer) error
	Detach(connID string) error
	Dispatch(connID string, cmd hub.Command) error
	Health(ctx context.Context) (hub.Health, error)
	SnapshotJSON(ctx context.Context) ([]byte, error)
	SessionsJSON(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, body []byte, merge bool) error
}

// Config wires the HTTP server.
type Config struct {
	Game   Game
	MCP    http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	game   Game
	logger *slog.Logger
}

// NewServer creates the router: websocket command channel, administrative
// endpoints and, when configured, the MCP endpoint.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &Server{game: cfg.Game, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/snapshot", srv.handleSnapshot)
	r.Get("/data/rp.json", srv.handleSessions)
	r.Post("/save", srv.handleSave)
	r.Handle("/ws", websocket.Handler(srv.handleWS))
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.game.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.game.SnapshotJSON(r.Context())
	if err != nil {
		s.logger.Error("snapshot read failed", "error", err)
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}
	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	data, err := s.game.SessionsJSON(r.Context())
	if err != nil {
		s.logger.Error("sessions read failed", "error", err)
		http.Error(w, "sessions unavailable", http.StatusServiceUnavailable)
		return
	}
	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSaveBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, okResponse{Error: "body too large"})
		return
	}
	merge := r.URL.Query().Get("mode") == "merge"
	if err := s.game.Save(r.Context(), body, merge); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, hub.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("save rejected", "merge", merge, "error", err)
		writeJSON(w, status, okResponse{Error: err.Error()})
		return
	}
	s.logger.Info("snapshot replaced", "merge", merge, "bytes", len(body))
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
