package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"steadymic/internal/domain"
)

// StateSource is the read side of the continuity monitor.
type StateSource interface {
	GetState() domain.Snapshot
	GetErrorStats() domain.ErrorStats
}

// Server provides HTTP endpoints for health, state and metrics.
type Server struct {
	source StateSource
	server *http.Server
}

// NewServer creates a telemetry server listening on addr.
func NewServer(source StateSource, metrics *Metrics, addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/state", s.handleState)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	return s
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.source.GetState()
	status := http.StatusOK
	health := "ok"
	if snap.State == domain.StateError {
		status = http.StatusServiceUnavailable
		health = "error"
	}

	writeJSON(w, status, map[string]string{
		"status": health,
		"state":  string(snap.State),
		"reason": string(snap.Reason),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Snapshot: s.source.GetState(),
		Errors:   s.source.GetErrorStats(),
	})
}

type stateResponse struct {
	Snapshot domain.Snapshot   `json:"snapshot"`
	Errors   domain.ErrorStats `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
