// Package audit is an append-only session/task observability log: session
// open/close and background-task start/finish/cancel/error events,
// persisted to SQLite with golang-migrate-managed schema, exactly the
// db.go/migrate.go wiring the teacher used for its transit database,
// retargeted from sensor telemetry to this server's own operational
// events. This is ambient telemetry, not user state (SPEC_FULL.md's
// Non-goals still exclude persisting user state).
package audit

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/CARTAvis/carta-backend-sub003/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the audit log's storage handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path, applies the
// teacher's standard concurrency PRAGMAs, and migrates the schema to the
// latest version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// DB exposes the underlying handle for internal/dashboard's tailsql mount.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// RecordSessionOpen logs a new connection.
func (s *Store) RecordSessionOpen(sessionID, remoteAddr string, atUnixNanos int64) {
	s.insert("INSERT INTO session_events(session_id, event, remote_addr, at_unix_nanos) VALUES (?, 'open', ?, ?)",
		sessionID, remoteAddr, atUnixNanos)
}

// RecordSessionClose logs a connection teardown.
func (s *Store) RecordSessionClose(sessionID string, atUnixNanos int64) {
	s.insert("INSERT INTO session_events(session_id, event, at_unix_nanos) VALUES (?, 'close', ?)",
		sessionID, atUnixNanos)
}

// RecordTaskEvent logs one lifecycle point (start/finish/cancel/error)
// of a background task kind ("moment", "pv", "fit", "contour", ...).
func (s *Store) RecordTaskEvent(sessionID, kind, event, detail string, atUnixNanos int64) {
	s.insert("INSERT INTO task_events(session_id, kind, event, detail, at_unix_nanos) VALUES (?, ?, ?, ?, ?)",
		sessionID, kind, event, detail, atUnixNanos)
}

func (s *Store) insert(query string, args ...any) {
	if _, err := s.db.Exec(query, args...); err != nil {
		monitoring.Logf("audit: insert failed: %v", err)
	}
}

// SessionEventCounts returns the number of open/close events recorded,
// for the dashboard's connection-churn panel.
func (s *Store) SessionEventCounts() (opens, closes int64, err error) {
	if err := s.db.QueryRow("SELECT COUNT(*) FROM session_events WHERE event = 'open'").Scan(&opens); err != nil {
		return 0, 0, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM session_events WHERE event = 'close'").Scan(&closes); err != nil {
		return 0, 0, err
	}
	return opens, closes, nil
}
