package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"eve-nerd/internal/logger"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS map_meta (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS regions (
				id   INTEGER PRIMARY KEY,
				name TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS systems (
				id        INTEGER PRIMARY KEY,
				name      TEXT NOT NULL,
				region_id INTEGER NOT NULL DEFAULT 0,
				security  REAL NOT NULL DEFAULT 0,
				x         REAL NOT NULL,
				y         REAL NOT NULL,
				z         REAL NOT NULL
			);

			CREATE TABLE IF NOT EXISTS structures (
				id        INTEGER PRIMARY KEY,
				system_id INTEGER NOT NULL REFERENCES systems(id),
				name      TEXT NOT NULL,
				kind      INTEGER NOT NULL,
				x         REAL NOT NULL,
				y         REAL NOT NULL,
				z         REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_structures_system ON structures(system_id);

			CREATE TABLE IF NOT EXISTS links (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				from_system INTEGER NOT NULL,
				to_system   INTEGER NOT NULL,
				from_gate   INTEGER NOT NULL DEFAULT 0,
				to_gate     INTEGER NOT NULL DEFAULT 0
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1 (map cache)")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS bridges (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				kind       TEXT NOT NULL,
				a          INTEGER NOT NULL,
				b          INTEGER NOT NULL DEFAULT 0,
				range_ly   REAL NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				UNIQUE(kind, a, b)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (bridges)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
