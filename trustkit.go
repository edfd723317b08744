// Package trustkit coordinates session validity and trusted-device lifecycle
// for an identity account: it polls session validity, registers and revokes
// trusted devices, and keeps a shared reactive cache consistent with those
// state changes.
package trustkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spidy092/trustkit/audit"
	"github.com/spidy092/trustkit/cache"
)

// Cache keys owned by the coordinator. Components invalidate only their own
// keys; full clears are reserved for forced logout and bulk revocation.
const (
	keyDeviceList  = "trusted-devices"
	keySessionList = "account-sessions"
)

// Endpoint paths on the identity service.
const (
	pathValidate  = "/account/sessions/validate"
	pathSessions  = "/account/sessions"
	pathLogoutAll = "/account/logout-all"
	pathDevices   = "/trusted-devices"
	pathRegister  = "/trusted-devices/register"
	pathRevokeAll = "/trusted-devices/emergency/revoke-all"
)

// Coordinator is the session and device trust coordinator. Construct one per
// authenticated account with New; it carries its own lifecycle (Close on
// teardown) and must not be shared across accounts.
type Coordinator struct {
	config  Config
	gateway Gateway
	cache   cache.Cache
	audit   audit.Recorder
	geoip   *GeoIPReader
	log     *zap.Logger

	ownsCache bool
	ownsAudit bool

	mu              sync.Mutex
	sealed          bool   // cached reads and mutations refused while set
	episodeTripped  bool   // invalid-episode debounce; reset by a valid poll
	logoutPending   bool   // a grace-period logout is scheduled but not yet run
	currentDeviceID string // set by RegisterCurrentDevice
	advisoryShown   bool   // one-time HIGH-risk registration advisory

	invalidSubs map[int]func(reason string)
	nextSub     int
}

// New creates a Coordinator with the given configuration. If Cache or Audit
// are not provided, in-memory defaults are used and owned (closed by Close).
func New(cfg Config) (*Coordinator, error) {
	if cfg.Gateway == nil {
		return nil, ErrGatewayRequired
	}
	cfg.applyDefaults()

	c := &Coordinator{
		config:  cfg,
		gateway: cfg.Gateway,
		cache:   cfg.Cache,
		audit:   cfg.Audit,
		log:     cfg.Logger,
	}

	if c.cache == nil {
		c.cache = cache.NewMemory()
		c.ownsCache = true
	}
	if c.audit == nil {
		c.audit = audit.NewMemory(0)
		c.ownsAudit = true
	}

	if cfg.GeoIPDatabasePath != "" {
		geoip, err := NewGeoIPReader(cfg.GeoIPDatabasePath)
		if err != nil {
			return nil, fmt.Errorf("trustkit: failed to initialize GeoIP: %w", err)
		}
		c.geoip = geoip
	}

	return c, nil
}

// Close releases resources owned by the coordinator. Injected cache and audit
// backends are the caller's to close.
func (c *Coordinator) Close() error {
	var errs []error

	if c.ownsCache {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ownsAudit {
		if err := c.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.geoip != nil {
		if err := c.geoip.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("trustkit: errors during close: %v", errs)
	}
	return nil
}

// AuditTrail returns up to limit recorded security events, newest first.
func (c *Coordinator) AuditTrail(ctx context.Context, limit int) ([]audit.Event, error) {
	return c.audit.Recent(ctx, limit)
}

// checkSealed refuses cached reads and mutations during the revoke-all grace
// window, so nothing observes a half-cleared cache before the logout lands.
func (c *Coordinator) checkSealed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return ErrLoggedOut
	}
	return nil
}

// subscribeInvalid registers fn to be called once per invalidity episode,
// after the cache clear and before the logout. The returned id is for
// unsubscribeInvalid.
func (c *Coordinator) subscribeInvalid(fn func(reason string)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidSubs == nil {
		c.invalidSubs = make(map[int]func(string))
	}
	c.nextSub++
	c.invalidSubs[c.nextSub] = fn
	return c.nextSub
}

func (c *Coordinator) unsubscribeInvalid(id int) {
	c.mu.Lock()
	delete(c.invalidSubs, id)
	c.mu.Unlock()
}

// forceLogout runs the session-invalidation path: seal, full cache clear,
// notify subscribers, then logout after the grace period. The episode flag
// makes the observable logout happen at most once per invalidity episode,
// however many detectors fire concurrently.
func (c *Coordinator) forceLogout(ctx context.Context, reason string, grace time.Duration) {
	c.mu.Lock()
	if c.episodeTripped {
		c.mu.Unlock()
		c.log.Debug("forced logout already in flight", zap.String("reason", reason))
		return
	}
	c.episodeTripped = true
	if grace > 0 {
		// Bulk revocation: nothing may be served between the clear and the
		// logout. Monitor-driven invalidation has no grace window; reads
		// after it refetch against the service and fail there if need be.
		c.sealed = true
		c.logoutPending = true
	}
	subs := make([]func(string), 0, len(c.invalidSubs))
	for _, fn := range c.invalidSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	// The clear must complete before anything else runs so the next read
	// cannot observe pre-invalidation state.
	if err := c.cache.Clear(ctx); err != nil {
		c.log.Error("cache clear failed during forced logout", zap.Error(err))
	}
	c.record(ctx, audit.Event{
		Action: audit.ActionSessionInvalidated,
		Status: audit.StatusSuccess,
		Detail: reason,
	})

	for _, fn := range subs {
		fn(reason)
	}

	logout := func() {
		c.mu.Lock()
		c.logoutPending = false
		c.mu.Unlock()

		c.record(context.Background(), audit.Event{
			Action: audit.ActionForcedLogout,
			Status: audit.StatusSuccess,
			Detail: reason,
		})
		c.log.Info("forced logout", zap.String("reason", reason))
		if c.config.Logout != nil {
			c.config.Logout()
		}
	}

	if grace > 0 {
		time.AfterFunc(grace, logout)
	} else {
		logout()
	}
}

// recoverEpisode ends an invalidity episode after the session is observed
// valid again. The next invalid result may fire callbacks once more. The
// service keeps the session valid until the scheduled logout actually runs,
// so a valid poll landing inside the grace window must not lift the seal or
// re-arm the episode; recovery applies only once no logout is pending.
func (c *Coordinator) recoverEpisode() {
	c.mu.Lock()
	if !c.logoutPending {
		c.episodeTripped = false
		c.sealed = false
	}
	c.mu.Unlock()
}

// record appends an audit event. The trail is best effort; failures are
// logged and never propagate into the calling operation.
func (c *Coordinator) record(ctx context.Context, e audit.Event) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	if err := c.audit.Record(ctx, e); err != nil {
		c.log.Warn("failed to record audit event",
			zap.String("action", e.Action), zap.Error(err))
	}
}

// cachedJSON reads key from the cache into out, reporting whether it hit.
func (c *Coordinator) cachedJSON(ctx context.Context, key string, out any) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A corrupt entry is dropped rather than served.
		_ = c.cache.Invalidate(ctx, key)
		return false
	}
	return true
}

// storeJSON writes value under key. Cache write failures degrade to
// fetch-every-time and are only logged.
func (c *Coordinator) storeJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, key, raw, ttl); err != nil {
		c.log.Warn("failed to store cache entry", zap.String("key", key), zap.Error(err))
	}
}
