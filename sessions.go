package trustkit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spidy092/trustkit/audit"
)

type sessionListResponse struct {
	Success bool      `json:"success"`
	Data    []Session `json:"data"`
	Count   int       `json:"count"`
}

// ListSessions returns all sessions for the account across clients, served
// from the cache when fresh. Each session carries the derived browser, OS,
// device type and the suspicious flag.
func (c *Coordinator) ListSessions(ctx context.Context) ([]Session, error) {
	if err := c.checkSealed(); err != nil {
		return nil, err
	}

	now := time.Now()

	var cached []Session
	if c.cachedJSON(ctx, keySessionList, &cached) {
		for i := range cached {
			cached[i].enrich(now)
		}
		return cached, nil
	}

	var resp sessionListResponse
	if err := c.gateway.Get(ctx, pathSessions, &resp); err != nil {
		return nil, err
	}

	// The raw list is cached; derived fields depend on the clock and are
	// recomputed on every read.
	c.storeJSON(ctx, keySessionList, resp.Data, c.config.SessionListTTL)

	sessions := resp.Data
	for i := range sessions {
		sessions[i].enrich(now)
	}
	return sessions, nil
}

// TerminateSession ends a single session. Session-scoped cache keys are
// invalidated before the success is reported.
func (c *Coordinator) TerminateSession(ctx context.Context, id string) error {
	if err := c.checkSealed(); err != nil {
		return err
	}

	path := fmt.Sprintf("%s/%s", pathSessions, id)
	if err := c.gateway.Delete(ctx, path, nil, nil); err != nil {
		c.record(ctx, audit.Event{
			Action:    audit.ActionSessionTerminated,
			Status:    audit.StatusFailed,
			SessionID: id,
			Detail:    err.Error(),
		})
		return err
	}

	if err := c.cache.Invalidate(ctx, keySessionList); err != nil {
		c.log.Warn("failed to invalidate session list", zap.Error(err))
	}

	c.record(ctx, audit.Event{
		Action:    audit.ActionSessionTerminated,
		Status:    audit.StatusSuccess,
		SessionID: id,
	})
	return nil
}

// LogoutAll terminates every session on the account, then clears the cache
// and forces logout locally.
func (c *Coordinator) LogoutAll(ctx context.Context) error {
	if err := c.checkSealed(); err != nil {
		return err
	}

	if err := c.gateway.Post(ctx, pathLogoutAll, nil, nil); err != nil {
		return err
	}

	c.forceLogout(ctx, "logout_all", 0)
	return nil
}
