package obs

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLitePoisonSink persists poisoned plans to a SQLite database, adapted
// from the same driver and WAL setup a checkpoint store would use, so a
// batch run leaves behind a queryable file instead of only an in-memory
// ring buffer that disappears when the process exits.
type SQLitePoisonSink struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLitePoisonSink opens (creating if necessary) a SQLite database at
// path to record poisoned plans. path may be ":memory:" for tests.
func NewSQLitePoisonSink(path string) (*SQLitePoisonSink, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600); createErr == nil {
				if closeErr := f.Close(); closeErr != nil {
					slog.Warn("failed to close poison sink file after creation", slog.String("path", path), slog.String("error", closeErr.Error()))
				}
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open poison sink: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS poisoned_plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_time REAL NOT NULL,
			panic_value TEXT NOT NULL,
			stack TEXT NOT NULL,
			occurred_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if path != ":memory:" {
		if err := os.Chmod(path, 0600); err != nil {
			slog.Warn("failed to set restrictive permissions on poison sink", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	return &SQLitePoisonSink{db: db}, nil
}

var errPoisonSinkClosed = fmt.Errorf("obs: poison sink closed")

// Record persists p as a new row.
func (s *SQLitePoisonSink) Record(p PoisonedPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errPoisonSinkClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO poisoned_plans (plan_time, panic_value, stack, occurred_at)
		VALUES (?, ?, ?, ?)
	`, p.Time, p.Value, p.Stack, p.OccurredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record poisoned plan: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLitePoisonSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
