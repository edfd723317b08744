package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite implements Recorder on a local SQLite file using the pure Go
// modernc.org/sqlite driver. Events are append-only.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) an audit database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// WAL keeps reads cheap while the coordinator appends.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id         TEXT PRIMARY KEY,
		action     TEXT NOT NULL,
		status     TEXT NOT NULL,
		device_id  TEXT,
		session_id TEXT,
		detail     TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_created
		ON audit_events (created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// Record appends an event to the trail.
func (s *SQLite) Record(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, status, device_id, session_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Status, e.DeviceID, e.SessionID, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to record event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, status, device_id, session_id, detail, created_at
		 FROM audit_events
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var deviceID, sessionID, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.Status, &deviceID, &sessionID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.DeviceID = deviceID.String
		e.SessionID = sessionID.String
		e.Detail = detail.String
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: error iterating events: %w", err)
	}
	return events, nil
}
