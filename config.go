package trustkit

import (
	"time"

	"go.uber.org/zap"

	"github.com/spidy092/trustkit/audit"
	"github.com/spidy092/trustkit/cache"
)

// Config contains configuration options for the coordinator.
type Config struct {
	// Gateway executes calls against the identity service. Required.
	Gateway Gateway

	// Cache is the shared reactive data cache.
	// Default: in-memory cache.
	Cache cache.Cache

	// Audit records the local security-event trail.
	// Default: in-memory recorder.
	Audit audit.Recorder

	// Logger receives structured logs. Default: zap.NewNop().
	Logger *zap.Logger

	// Logout is invoked on forced logout, after the cache has been cleared.
	// Typically it drops tokens and redirects to re-authentication.
	Logout func()

	// GeoIPDatabasePath is the path to a MaxMind GeoLite2-City.mmdb file.
	// Optional; when set, device locations missing from the service response
	// are filled from the device's IP address.
	GeoIPDatabasePath string

	// DeviceListTTL is how long a fetched device list stays fresh.
	// Default: 2 minutes.
	DeviceListTTL time.Duration

	// SessionListTTL is how long a fetched session list stays fresh.
	// Default: 1 minute.
	SessionListTTL time.Duration

	// TrustDays is the trust window requested when trusting a device.
	// Default: 30.
	TrustDays int

	// LogoutGrace is the pause between a successful revoke-all and the forced
	// logout, so the caller can display confirmation. No cached reads or
	// mutations are served during the grace period.
	// Default: 2 seconds.
	LogoutGrace time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeviceListTTL:  2 * time.Minute,
		SessionListTTL: time.Minute,
		TrustDays:      30,
		LogoutGrace:    2 * time.Second,
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.DeviceListTTL <= 0 {
		c.DeviceListTTL = defaults.DeviceListTTL
	}
	if c.SessionListTTL <= 0 {
		c.SessionListTTL = defaults.SessionListTTL
	}
	if c.TrustDays <= 0 {
		c.TrustDays = defaults.TrustDays
	}
	if c.LogoutGrace <= 0 {
		c.LogoutGrace = defaults.LogoutGrace
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
