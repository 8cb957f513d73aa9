package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer exposes the sweep worker's probe endpoints on a side port:
// /health answers liveness and /health/ready flips to 200 once the worker
// has finished wiring its stores and scheduler.
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady *atomic.Bool
	server  *http.Server
}

// NewHealthServer builds a probe server that reports not-ready until
// SetReady(true) is called.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	ready := &atomic.Bool{}
	ready.Store(false)
	return &HealthServer{addr: addr, logger: logger, isReady: ready}
}

// Start serves the probe endpoints until ctx is canceled, then shuts down
// gracefully with a 5s deadline. Returns http.ErrServerClosed on a clean
// stop.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		h.logger.Info("probe server listening", slog.String("addr", h.addr))
		serveErr <- h.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return h.stop()
	case err := <-serveErr:
		if err != http.ErrServerClosed {
			h.logger.Error("probe server exited", slog.Any("error", err))
		}
		return err
	}
}

func (h *HealthServer) stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		h.logger.Error("probe server shutdown failed", slog.Any("error", err))
		return err
	}
	h.logger.Info("probe server stopped")
	return http.ErrServerClosed
}

// SetReady flips the readiness probe. The worker calls this after its queue
// and session stores are wired, and again with false ahead of shutdown.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("probe readiness changed", slog.Bool("ready", ready))
}

// writeStatus sends the one-field JSON probe body.
func (h *HealthServer) writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := struct {
		Status string `json:"status"`
	}{Status: status}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("probe response write failed", slog.Any("error", err))
	}
}

// Liveness never fails while the process can still serve HTTP.
func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, http.StatusOK, "ok")
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.isReady.Load() {
		h.writeStatus(w, http.StatusOK, "ok")
		return
	}
	h.writeStatus(w, http.StatusServiceUnavailable, "not ready")
}
