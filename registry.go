package trustkit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spidy092/trustkit/audit"
)

// Registration is the result of registering the current device.
type Registration struct {
	// Device is the service's record for this fingerprint. For an already
	// known fingerprint this is the existing device with LastUsed refreshed.
	Device Device

	// Created is true when this registration created a new device entity.
	Created bool

	// RiskLevel is the service's classification of the registration signals.
	RiskLevel RiskLevel

	// Advisory is true the first time a newly created device comes back
	// HIGH risk. It is informational; usage is not blocked.
	Advisory bool
}

// DeviceList is the account's device list with derived insights.
type DeviceList struct {
	Devices  []Device `json:"devices"`
	Count    int      `json:"count"`
	Insights Insights `json:"insights"`
}

type registerRequest struct {
	FingerprintSignals
	Fingerprint string `json:"fingerprint"`
}

type registeredDevice struct {
	Device
	Created bool `json:"created"`
}

type registerResponse struct {
	Success  bool             `json:"success"`
	Device   registeredDevice `json:"device"`
	Security struct {
		RiskLevel RiskLevel `json:"riskLevel"`
	} `json:"security"`
}

type deviceListResponse struct {
	Success bool     `json:"success"`
	Data    []Device `json:"data"`
	Count   int      `json:"count"`
}

// RegisterCurrentDevice derives the fingerprint from the given signals and
// registers this device with the service. Registration is idempotent by
// fingerprint: a known fingerprint returns the existing device id and only
// refreshes LastUsed. The returned device becomes "the current device" for
// revocation checks.
func (c *Coordinator) RegisterCurrentDevice(ctx context.Context, signals FingerprintSignals) (*Registration, error) {
	if err := c.checkSealed(); err != nil {
		return nil, err
	}

	req := registerRequest{
		FingerprintSignals: signals,
		Fingerprint:        signals.Fingerprint(),
	}

	var resp registerResponse
	if err := c.gateway.Post(ctx, pathRegister, req, &resp); err != nil {
		c.record(ctx, audit.Event{
			Action: audit.ActionDeviceRegistered,
			Status: audit.StatusFailed,
			Detail: err.Error(),
		})
		return nil, err
	}

	reg := &Registration{
		Device:    resp.Device.Device,
		Created:   resp.Device.Created,
		RiskLevel: resp.Security.RiskLevel,
	}
	if reg.RiskLevel == "" {
		reg.RiskLevel = resp.Device.RiskLevel
	}

	c.mu.Lock()
	c.currentDeviceID = reg.Device.ID
	if reg.Created && reg.RiskLevel == RiskHigh && !c.advisoryShown {
		c.advisoryShown = true
		reg.Advisory = true
	}
	c.mu.Unlock()

	// The list the service would return has changed shape; drop our copy
	// before anyone reads it.
	if err := c.cache.Invalidate(ctx, keyDeviceList); err != nil {
		c.log.Warn("failed to invalidate device list", zap.Error(err))
	}

	c.record(ctx, audit.Event{
		Action:   audit.ActionDeviceRegistered,
		Status:   audit.StatusSuccess,
		DeviceID: reg.Device.ID,
		Detail:   fmt.Sprintf("created=%t risk=%s", reg.Created, reg.RiskLevel),
	})

	if reg.Advisory {
		c.log.Warn("new device registered with elevated risk",
			zap.String("device_id", reg.Device.ID))
	}

	return reg, nil
}

// CurrentDeviceID returns the device id established by RegisterCurrentDevice,
// or ErrNotRegistered if no registration has succeeded yet.
func (c *Coordinator) CurrentDeviceID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentDeviceID == "" {
		return "", ErrNotRegistered
	}
	return c.currentDeviceID, nil
}

// ListDevices returns all devices for the account with summary insights,
// served from the cache when fresh. Device locations missing from the service
// response are filled from GeoIP when configured.
func (c *Coordinator) ListDevices(ctx context.Context) (*DeviceList, error) {
	if err := c.checkSealed(); err != nil {
		return nil, err
	}

	var cached DeviceList
	if c.cachedJSON(ctx, keyDeviceList, &cached) {
		return &cached, nil
	}

	var resp deviceListResponse
	if err := c.gateway.Get(ctx, pathDevices, &resp); err != nil {
		return nil, err
	}

	devices := resp.Data
	for i := range devices {
		if devices[i].Location == "" && devices[i].IPAddress != "" && c.geoip != nil {
			if loc, err := c.geoip.Lookup(devices[i].IPAddress); err == nil {
				devices[i].Location = loc
			}
		}
	}

	count := resp.Count
	if count == 0 {
		count = len(devices)
	}

	list := &DeviceList{
		Devices:  devices,
		Count:    count,
		Insights: ComputeInsights(devices),
	}
	c.storeJSON(ctx, keyDeviceList, list, c.config.DeviceListTTL)
	return list, nil
}

// findDevice looks a device up by id in the (possibly cached) device list.
func (c *Coordinator) findDevice(ctx context.Context, id string) (*Device, error) {
	list, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list.Devices {
		if list.Devices[i].ID == id {
			return &list.Devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
