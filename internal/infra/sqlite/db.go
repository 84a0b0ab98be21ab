// Package sqlite persists credit accounts and their bounded transaction
// logs. One row per wallet in credit_accounts, up to HistoryLimit rows per
// wallet in credit_transactions, newest-first by monotonic seq.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle and implements domain.AccountStore.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent shard workers.
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := sqlDB.Exec(stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &DB{db: sqlDB}, nil
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Account snapshot, one row per canonical wallet key
		`CREATE TABLE IF NOT EXISTS credit_accounts (
			wallet           TEXT PRIMARY KEY,
			balance          INTEGER NOT NULL DEFAULT 0,
			total_deposited  INTEGER NOT NULL DEFAULT 0,
			total_spent      INTEGER NOT NULL DEFAULT 0,
			tier             TEXT NOT NULL DEFAULT 'standard',
			created_at       TEXT NOT NULL,
			last_activity_at TEXT NOT NULL
		)`,

		// Bounded transaction log; seq orders entries, newest = highest
		`CREATE TABLE IF NOT EXISTS credit_transactions (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet        TEXT NOT NULL,
			tx_id         TEXT NOT NULL,
			type          TEXT NOT NULL,
			amount        INTEGER NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			timestamp     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_tx_wallet ON credit_transactions(wallet, seq DESC)`,
	}
}
