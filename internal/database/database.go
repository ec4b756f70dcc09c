package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"slotnik/internal/calendar"
	"slotnik/internal/metrics"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	txMaxRetries = 5
	txRetryDelay = 20 * time.Millisecond
)

// Limits holds the self-service cancellation policy enforced inside
// transactions.
type Limits struct {
	CancelCutoff       time.Duration
	MonthlyCancelLimit int
}

// DB is the booking store. All booking operations run as single isolated
// transactions; busy/locked conflicts are retried transparently and reported
// as ErrStoreUnavailable only after retry exhaustion.
type DB struct {
	db     *sql.DB
	policy calendar.Policy
	limits Limits
	logger *zerolog.Logger

	// now is swappable in tests to pin transaction-commit time.
	now func() time.Time
}

func NewDB(path string, policy calendar.Policy, limits Limits, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// _txlock=immediate: пишущие транзакции берут блокировку на BEGIN,
	// поэтому проверка лок-записи внутри транзакции авторитетна.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=100&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if limits.CancelCutoff <= 0 {
		limits.CancelCutoff = 4 * time.Hour
	}
	if limits.MonthlyCancelLimit <= 0 {
		limits.MonthlyCancelLimit = 1
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{
		db:     db,
		policy: policy,
		limits: limits,
		logger: logger,
		now:    time.Now,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            time_slot INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'booked',
            user_id TEXT NOT NULL,
            services TEXT NOT NULL DEFAULT '[]',
            snapshot_name TEXT NOT NULL,
            snapshot_phone TEXT,
            snapshot_contact_id TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            canceled_at DATETIME,
            canceled_by TEXT
        )`,
		// Лок-запись слота: существование = слот занят
		`CREATE TABLE IF NOT EXISTS public_slots (
            time_slot INTEGER PRIMARY KEY,
            locked_at DATETIME NOT NULL,
            is_blocked BOOLEAN NOT NULL DEFAULT 0,
            note TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            uid TEXT PRIMARY KEY,
            display_name TEXT NOT NULL,
            phone_number TEXT,
            contact_id TEXT,
            role TEXT NOT NULL DEFAULT 'user',
            is_blocked BOOLEAN NOT NULL DEFAULT 0,
            active_booking_time_slot INTEGER,
            monthly_cancellations TEXT NOT NULL DEFAULT '{}',
            total_bookings INTEGER NOT NULL DEFAULT 0,
            total_cancellations INTEGER NOT NULL DEFAULT 0,
            first_booking_at DATETIME,
            last_booking_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_time_slot ON bookings(time_slot)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Policy returns the calendar policy the engine validates slots against.
func (db *DB) Policy() calendar.Policy {
	return db.policy
}

// isRetryable reports whether the error is a transient sqlite write conflict.
func isRetryable(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// withTx runs fn inside an immediate transaction. Write conflicts retry the
// whole operation from its read snapshot; exhaustion surfaces
// ErrStoreUnavailable.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= txMaxRetries; attempt++ {
		if attempt > 0 {
			metrics.IncStoreRetry()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * txRetryDelay):
			}
		}

		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	db.logger.Error().Err(lastErr).Msg("transaction retries exhausted")
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

func (db *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecContext and QueryContext expose the underlying pool for non-transactional
// reads and the sync queue.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}
