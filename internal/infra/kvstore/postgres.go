package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"creator-insights/internal/resilience/circuitbreaker"
)

// PostgresStore is a Store backed by the kv_entries table. All operations go
// through a circuit breaker so a database outage degrades callers quickly
// instead of piling up blocked connections.
type PostgresStore struct {
	db      *sql.DB
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

// NewPostgresStore creates a Postgres-backed store using the shared KV breaker profile.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		breaker: circuitbreaker.New(circuitbreaker.KVStoreConfig()),
		now:     time.Now,
	}
}

// Get returns the value for key, treating expired rows as absent.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		var value []byte
		var expiresAt sql.NullTime
		err := s.db.QueryRowContext(ctx,
			`SELECT value, expires_at FROM kv_entries WHERE key = $1`, key,
		).Scan(&value, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("kv get: %w", err)
		}
		if expiresAt.Valid && !s.now().Before(expiresAt.Time) {
			return nil, ErrKeyNotFound
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Set upserts the value under key with the given TTL.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: s.now().Add(ttl), Valid: true}
	}

	_, err := s.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO kv_entries (key, value, expires_at, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (key) DO UPDATE
			 SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
			key, value, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("kv set: %w", err)
		}
		return nil, nil
	})
	return err
}

// Delete removes the entry for key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
			return nil, fmt.Errorf("kv delete: %w", err)
		}
		return nil, nil
	})
	return err
}

// Expire resets the TTL of an existing, unexpired entry.
func (s *PostgresStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: s.now().Add(ttl), Valid: true}
	}

	_, err := s.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		res, err := s.db.ExecContext(ctx,
			`UPDATE kv_entries SET expires_at = $2, updated_at = now()
			 WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
			key, expiresAt)
		if err != nil {
			return nil, fmt.Errorf("kv expire: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("kv expire rows affected: %w", err)
		}
		if affected == 0 {
			return nil, ErrKeyNotFound
		}
		return nil, nil
	})
	return err
}

// PurgeExpired deletes expired rows in one statement.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
		if err != nil {
			return nil, fmt.Errorf("kv purge: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("kv purge rows affected: %w", err)
		}
		return int(affected), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}
