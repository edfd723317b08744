package trustkit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spidy092/trustkit/audit"
)

type revokeRequest struct {
	Reason string `json:"reason"`
}

type revokeResponse struct {
	Success bool `json:"success"`
}

// RevokeDevice revokes a single device. On success only the device-list
// cache entry is invalidated. Revoking the device backing the current
// session additionally runs the session-invalidation path, so a live session
// is never left under a revoked device.
//
// A 409 from the service (already revoked) is surfaced and changes nothing
// locally. Failed calls are not retried automatically.
func (c *Coordinator) RevokeDevice(ctx context.Context, id string) error {
	if err := c.checkSealed(); err != nil {
		return err
	}

	device, err := c.findDevice(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(device.TrustStatus, eventRevoke); err != nil {
		return err
	}

	var resp revokeResponse
	path := fmt.Sprintf("%s/%s", pathDevices, id)
	if err := c.gateway.Delete(ctx, path, revokeRequest{Reason: "user_initiated"}, &resp); err != nil {
		c.record(ctx, audit.Event{
			Action:   audit.ActionDeviceRevoked,
			Status:   audit.StatusFailed,
			DeviceID: id,
			Detail:   err.Error(),
		})
		return err
	}

	// Scoped invalidation only; the rest of the cache is still valid.
	if err := c.cache.Invalidate(ctx, keyDeviceList); err != nil {
		c.log.Warn("failed to invalidate device list", zap.Error(err))
	}

	c.record(ctx, audit.Event{
		Action:   audit.ActionDeviceRevoked,
		Status:   audit.StatusSuccess,
		DeviceID: id,
	})

	c.mu.Lock()
	isCurrent := c.currentDeviceID != "" && id == c.currentDeviceID
	c.mu.Unlock()

	if isCurrent {
		if err := c.cache.Invalidate(ctx, keySessionList); err != nil {
			c.log.Warn("failed to invalidate session list", zap.Error(err))
		}
		c.forceLogout(ctx, "current_device_revoked", 0)
	}
	return nil
}

// RevokeAll revokes every device on the account. The service is the
// atomicity boundary: on failure nothing changed and the error is surfaced.
// On success the whole cache is cleared before anything else, then a forced
// logout is scheduled after the configured grace period; cached reads are
// refused in between.
func (c *Coordinator) RevokeAll(ctx context.Context) error {
	if err := c.checkSealed(); err != nil {
		return err
	}

	var resp revokeResponse
	err := c.gateway.Post(ctx, pathRevokeAll, revokeRequest{Reason: "user_initiated"}, &resp)
	if err != nil {
		c.record(ctx, audit.Event{
			Action: audit.ActionRevokeAll,
			Status: audit.StatusFailed,
			Detail: err.Error(),
		})
		return err
	}

	c.record(ctx, audit.Event{
		Action: audit.ActionRevokeAll,
		Status: audit.StatusSuccess,
	})

	c.forceLogout(ctx, "all_devices_revoked", c.config.LogoutGrace)
	return nil
}
