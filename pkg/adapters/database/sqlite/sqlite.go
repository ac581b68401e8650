package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements ports.Database on a plain database/sql
// connection, without going through GORM.
type SQLiteStorage struct {
	conn *sql.DB
}

func NewSQLiteAdapter(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	db := &SQLiteStorage{conn: conn}
	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *SQLiteStorage) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

func (db *SQLiteStorage) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS function_sizings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		functionId TEXT NOT NULL UNIQUE,
		provisionedMemMB INTEGER NOT NULL,
		functionMemMB INTEGER NOT NULL,
		callerMemMB INTEGER NOT NULL,
		createdAt DATETIME DEFAULT CURRENT_TIMESTAMP,
		updatedAt DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scaling_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		functionId TEXT NOT NULL UNIQUE,
		activity REAL NOT NULL,
		waiting REAL NOT NULL,
		currentScale INTEGER NOT NULL,
		lastRescale DATETIME NOT NULL,
		createdAt DATETIME DEFAULT CURRENT_TIMESTAMP,
		updatedAt DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		functionId TEXT NOT NULL,
		durationSecs REAL NOT NULL,
		observedAt DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_fn_observed ON samples(functionId, observedAt);

	CREATE TABLE IF NOT EXISTS leases (
		key TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		expiresAt DATETIME NOT NULL
	);

	CREATE TRIGGER IF NOT EXISTS update_scaling_states_timestamp
		AFTER UPDATE ON scaling_states
		BEGIN
			UPDATE scaling_states SET updatedAt = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END;
	`

	_, err := db.conn.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}
