package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection pool holding slot bookings.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrSlotConflict     = errors.New("slot range already booked")
	ErrNotFound         = errors.New("booking not found")
	ErrForbidden        = errors.New("booking belongs to another user")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Write transactions take the lock at BEGIN so the overlap check and insert
	// are serialised across connections.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ready checks that the database answers queries.
func (db *DB) Ready(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS slot_bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			user_id INTEGER NOT NULL DEFAULT 0,
			turf_id INTEGER NOT NULL,
			turf_name TEXT NOT NULL DEFAULT '',
			sport_id INTEGER NOT NULL,
			sport_name TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			duration REAL NOT NULL,
			start_slot_value INTEGER NOT NULL,
			end_slot_value INTEGER NOT NULL,
			total_price REAL NOT NULL,
			status INTEGER NOT NULL DEFAULT 1,
			special_requests TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (start_slot_value BETWEEN 0 AND 47),
			CHECK (end_slot_value BETWEEN 0 AND 47),
			CHECK (start_slot_value <= end_slot_value)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slot_bookings_scope
			ON slot_bookings(turf_id, sport_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_slot_bookings_user
			ON slot_bookings(user_id, date)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
