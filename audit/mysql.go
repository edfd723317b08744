package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL implements Recorder on MySQL, for deployments that ship the audit
// trail to a shared database instead of a local file.
type MySQL struct {
	db *sql.DB
}

// NewMySQL creates a MySQL recorder from an existing connection.
func NewMySQL(db *sql.DB) (*MySQL, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &MySQL{db: db}, nil
}

// NewMySQLFromDSN creates a MySQL recorder from a DSN.
// The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db)
}

func createMySQLSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id         VARCHAR(36) PRIMARY KEY,
		action     VARCHAR(64) NOT NULL,
		status     VARCHAR(16) NOT NULL,
		device_id  VARCHAR(255),
		session_id VARCHAR(255),
		detail     TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

		INDEX idx_audit_events_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("mysql: failed to create schema: %w", err)
	}
	return nil
}

// Record appends an event to the trail.
func (m *MySQL) Record(ctx context.Context, e Event) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, status, device_id, session_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Status, e.DeviceID, e.SessionID, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to record event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (m *MySQL) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT id, action, status, device_id, session_id, detail, created_at
		 FROM audit_events
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Close closes the database connection.
func (m *MySQL) Close() error {
	return m.db.Close()
}
