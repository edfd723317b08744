// Package audit keeps a local trail of security-relevant coordinator events:
// device registrations, trust and revocation actions, and forced logouts.
// Revoked devices and terminated sessions stay visible through this trail even
// after the service purges them.
package audit

import (
	"context"
	"time"
)

// Actions recorded by the coordinator.
const (
	ActionDeviceRegistered   = "device_registered"
	ActionDeviceTrusted      = "device_trusted"
	ActionDeviceRevoked      = "device_revoked"
	ActionRevokeAll          = "revoke_all"
	ActionSessionTerminated  = "session_terminated"
	ActionSessionInvalidated = "session_invalidated"
	ActionForcedLogout       = "forced_logout"
)

// Event statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Event is one entry in the security trail.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	DeviceID  string    `json:"device_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists events. Implementations must be safe for concurrent use.
type Recorder interface {
	// Record appends an event to the trail.
	Record(ctx context.Context, e Event) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)

	// Close releases any resources held by the recorder.
	Close() error
}
