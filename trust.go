package trustkit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spidy092/trustkit/audit"
)

// trustEvent is a client-initiated lifecycle action.
type trustEvent string

const (
	eventTrust  trustEvent = "trust"
	eventRevoke trustEvent = "revoke"
)

// checkTransition validates a client-initiated trust transition before the
// service call is issued. Legal moves:
//
//	pending  --trust-->  trusted
//	pending  --revoke--> revoked
//	trusted  --revoke--> revoked
//
// revoked and expired are terminal for the client; expired is reached only by
// time or service-side decision. The service response remains authoritative:
// passing here only means the call is worth issuing, and local state is never
// advanced past what the service returns.
func checkTransition(from TrustStatus, ev trustEvent) error {
	switch ev {
	case eventTrust:
		if from == TrustPending {
			return nil
		}
	case eventRevoke:
		if from == TrustPending || from == TrustTrusted {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s a %s device", ErrInvalidTransition, ev, from)
}

type trustRequest struct {
	TrustDays int `json:"trustDays"`
}

type trustResponse struct {
	Success bool   `json:"success"`
	Device  Device `json:"device"`
}

// TrustDevice promotes a pending device to trusted for the configured trust
// window. The transition is confirmed by the service; a failed call leaves
// the device's state untouched and is not retried automatically.
func (c *Coordinator) TrustDevice(ctx context.Context, id string) (*Device, error) {
	if err := c.checkSealed(); err != nil {
		return nil, err
	}

	device, err := c.findDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(device.TrustStatus, eventTrust); err != nil {
		return nil, err
	}

	var resp trustResponse
	path := fmt.Sprintf("%s/%s/trust", pathDevices, id)
	if err := c.gateway.Post(ctx, path, trustRequest{TrustDays: c.config.TrustDays}, &resp); err != nil {
		c.record(ctx, audit.Event{
			Action:   audit.ActionDeviceTrusted,
			Status:   audit.StatusFailed,
			DeviceID: id,
			Detail:   err.Error(),
		})
		return nil, err
	}

	// The list cache predates the transition; drop it before the success is
	// reported so the next read refetches.
	if err := c.cache.Invalidate(ctx, keyDeviceList); err != nil {
		c.log.Warn("failed to invalidate device list", zap.Error(err))
	}

	c.record(ctx, audit.Event{
		Action:   audit.ActionDeviceTrusted,
		Status:   audit.StatusSuccess,
		DeviceID: id,
	})

	updated := resp.Device
	if updated.ID == "" {
		// Service confirmed but returned no body; report what it committed
		// without inventing fields beyond the transition itself.
		updated = *device
		updated.TrustStatus = TrustTrusted
	}
	return &updated, nil
}
