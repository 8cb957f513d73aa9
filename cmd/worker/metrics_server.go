package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"creator-insights/internal/infra/kvstore"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StoreHealthResponse struct {
	Healthy bool   `json:"healthy"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// startMetricsServer serves /metrics for Prometheus scrapes plus /health and
// /health/store on METRICS_PORT (default 9090). The server runs in the
// background and shuts down, with a 5 second grace period, when ctx is
// canceled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, kv kvstore.Store) *http.Server {
	port := getMetricsPort()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/store", storeHealthHandler(kv))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics endpoint listening", slog.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics endpoint exited", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Error("metrics endpoint shutdown failed", slog.Any("error", err))
			return
		}
		logger.Info("metrics endpoint stopped")
	}()

	return srv
}

func getMetricsPort() int {
	const fallback = 9090
	raw := os.Getenv("METRICS_PORT")
	if raw == "" {
		return fallback
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return fallback
	}
	return port
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// healthHandler is the liveness probe; it always answers 200.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// storeHealthHandler answers 200 when the KV backend responds to a read and
// 503 on transport errors.
func storeHealthHandler(kv kvstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := StoreHealthResponse{Healthy: true, Backend: pkgBackendName()}

		// A missing probe key still proves the store is reachable.
		if _, err := kv.Get(ctx, "health:probe"); err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
			resp.Healthy = false
			resp.Error = "store unreachable"
		}

		code := http.StatusOK
		if !resp.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

// pkgBackendName reports which KV backend this worker was started with.
func pkgBackendName() string {
	if os.Getenv("KV_BACKEND") == "postgres" {
		return "postgres"
	}
	return "memory"
}
