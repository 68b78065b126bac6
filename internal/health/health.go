// Package health serves the readiness endpoint of the jcr relay.
//
// The health server listens on its own port. GET /health answers
// 503 Service Unavailable with body "starting" until the relay has loaded its
// configuration and plugins, and 200 OK with body "ok" afterwards. The relay
// clears readiness while a configuration reload is in progress.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Server provides the /health endpoint.
type Server struct {
	server *http.Server
	ready  atomic.Bool
}

// New creates a health server for the given port. Port 0 picks a free port
// when the server is started with Start.
func New(port int) *Server {
	s := &Server{}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)

	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving /health.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured port and serves until Stop is called.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts health requests on ln.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("Starting health server", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the health server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// MarkReady makes /health return 200.
func (s *Server) MarkReady() {
	if !s.ready.Swap(true) {
		slog.Info("Health server marked as ready")
	}
}

// MarkNotReady makes /health return 503.
func (s *Server) MarkNotReady() {
	if s.ready.Swap(false) {
		slog.Info("Health server marked as not ready")
	}
}

// Ready reports the current readiness state.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	status, body := http.StatusServiceUnavailable, "starting"
	if s.ready.Load() {
		status, body = http.StatusOK, "ok"
	}

	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}
