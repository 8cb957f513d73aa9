package db

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ConnectionConfig tunes the pgx connection pool shared by the API and the
// sweep worker.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open connects to the Postgres behind DATABASE_URL and applies the pool
// settings from the DB_* environment variables. A missing URL or a failed
// ping is fatal: neither binary can run without its task and session tables.
func Open() *sql.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal(err)
	}

	cfg := getConnectionConfigFromEnv()
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("postgres pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	slog.Info("postgres connection established")
	return db
}

// getConnectionConfigFromEnv overrides the defaults from DB_MAX_OPEN_CONNS,
// DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME. Values
// that fail to parse or are not positive keep the default.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	overridePositiveInt(&cfg.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	overridePositiveInt(&cfg.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	overridePositiveDuration(&cfg.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")
	overridePositiveDuration(&cfg.ConnMaxIdleTime, "DB_CONN_MAX_IDLE_TIME")
	return cfg
}

func overridePositiveInt(field *int, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if val, err := strconv.Atoi(raw); err == nil && val > 0 {
		*field = val
	}
}

func overridePositiveDuration(field *time.Duration, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if val, err := time.ParseDuration(raw); err == nil && val > 0 {
		*field = val
	}
}
