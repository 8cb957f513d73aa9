package db

import (
	"database/sql"
)

// MigrateUp creates the schema the orchestration layer needs. The only
// persistent state is the shared key-value table backing the cache and the
// session store; everything else lives in memory.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS kv_entries (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// Expiry scans run on every sweep; keep them off the primary key path.
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries(expires_at) WHERE expires_at IS NOT NULL`,
	); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the schema.
// Use with caution: this deletes all cached results and sessions.
func MigrateDown(db *sql.DB) error {
	if _, err := db.Exec(`DROP INDEX IF EXISTS idx_kv_entries_expires_at`); err != nil {
		return err
	}
	if _, err := db.Exec(`DROP TABLE IF EXISTS kv_entries`); err != nil {
		return err
	}
	return nil
}
