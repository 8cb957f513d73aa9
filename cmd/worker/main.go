package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"creator-insights/internal/handler/http/respond"
	"creator-insights/internal/infra/db"
	"creator-insights/internal/infra/kvstore"
	workerPkg "creator-insights/internal/infra/worker"
	"creator-insights/internal/observability/logging"
	pkgconfig "creator-insights/pkg/config"
)

// waitForMigrations blocks until the kv_entries table exists. The API process
// runs the migrations; the worker just waits for them.
func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const (
		probe    = "SELECT 1 FROM kv_entries LIMIT 1"
		attempts = 10
		pause    = 3 * time.Second
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("kv_entries table not there yet, waiting for migrations",
			slog.Int("attempt", attempt), slog.Duration("pause", pause))
		time.Sleep(pause)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("worker configuration rejected", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("sweep_timeout", workerConfig.SweepTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	kv, cleanup := initKVStore(logger)
	defer cleanup()

	startMetricsServer(ctx, logger, kv)

	probeAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	probes := workerPkg.NewHealthServer(probeAddr, logger)
	go func() {
		if err := probes.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("probe server failed", slog.Any("error", err))
		}
	}()

	startCronWorker(logger, kv, workerConfig, workerMetrics, probes)
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initKVStore selects the KV backend to sweep. The sweep only matters for the
// Postgres backend where expired rows persist; the in-memory backend is
// supported for local runs.
func initKVStore(logger *slog.Logger) (kvstore.Store, func()) {
	backend := pkgconfig.GetEnvString("KV_BACKEND", "memory")
	if backend != "postgres" {
		logger.Warn("kv store: in-memory backend, sweeps only affect this process")
		return kvstore.NewMemoryStore(), func() {}
	}

	database := db.Open()
	waitForMigrations(logger, database)
	logger.Info("kv store: postgres backend")
	return kvstore.NewPostgresStore(database), func() {
		if err := database.Close(); err != nil {
			logger.Error("database close failed", slog.Any("error", err))
		}
	}
}

// startCronWorker schedules the periodic sweep and blocks forever.
func startCronWorker(logger *slog.Logger, kv kvstore.Store, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("unknown timezone, scheduling in UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	scheduler := cron.New(cron.WithLocation(loc))
	sweep := func() { runSweepJob(logger, kv, cfg, metrics) }
	if _, err := scheduler.AddFunc(cfg.CronSchedule, sweep); err != nil {
		logger.Error("cron schedule rejected", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()

	// Ready only once the schedule is registered.
	healthServer.SetReady(true)

	logger.Info("sweep worker running",
		slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

// runSweepJob runs one purge of expired rows. Cached analyses and sessions
// share the kv_entries table, so one purge covers both.
func runSweepJob(logger *slog.Logger, kv kvstore.Store, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")
	logger.Info("sweep started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()

	purged, err := kv.PurgeExpired(ctx)
	if err != nil {
		logger.Error("sweep failed", slog.String("error", respond.SanitizeError(err)))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordEntriesPurged("kv", purged)
	metrics.RecordLastSuccess()

	logger.Info("sweep completed",
		slog.Int("purged", purged),
		slog.Duration("duration", time.Since(startTime)),
	)
}
