package trustkit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from  TrustStatus
		event trustEvent
		ok    bool
	}{
		{TrustPending, eventTrust, true},
		{TrustPending, eventRevoke, true},
		{TrustTrusted, eventRevoke, true},
		{TrustTrusted, eventTrust, false},
		{TrustRevoked, eventTrust, false},
		{TrustRevoked, eventRevoke, false},
		{TrustExpired, eventTrust, false},
		{TrustExpired, eventRevoke, false},
	}

	for _, tt := range tests {
		err := checkTransition(tt.from, tt.event)
		if tt.ok && err != nil {
			t.Errorf("checkTransition(%s, %s) = %v, want nil", tt.from, tt.event, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("checkTransition(%s, %s) = %v, want ErrInvalidTransition", tt.from, tt.event, err)
		}
	}
}

// trustFixture serves a device list and a trust endpoint whose outcome is
// controlled by trustErr.
type trustFixture struct {
	mu       sync.Mutex
	status   TrustStatus
	trustErr error
}

func (f *trustFixture) setStatus(s TrustStatus) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

func (f *trustFixture) handler() func(ctx context.Context, route string, body any) (any, error) {
	return func(_ context.Context, route string, _ any) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch route {
		case "GET " + pathDevices:
			d := []Device{{ID: "dev-1", TrustStatus: f.status}}
			return deviceListResponse{Success: true, Data: d, Count: 1}, nil
		case "POST " + pathDevices + "/dev-1/trust":
			if f.trustErr != nil {
				return nil, f.trustErr
			}
			f.status = TrustTrusted
			return trustResponse{Success: true, Device: Device{ID: "dev-1", TrustStatus: TrustTrusted}}, nil
		}
		return nil, errors.New("unexpected route: " + route)
	}
}

func TestTrustPendingDevice(t *testing.T) {
	f := &trustFixture{status: TrustPending}
	g := &fakeGateway{handle: f.handler()}
	tc := newTestCoordinator(t, g)

	ctx := context.Background()
	updated, err := tc.TrustDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}
	if updated.TrustStatus != TrustTrusted {
		t.Errorf("TrustStatus = %s, want trusted", updated.TrustStatus)
	}

	// The list cache predated the transition and must have been dropped.
	list, err := tc.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if list.Devices[0].TrustStatus != TrustTrusted {
		t.Errorf("Post-trust list shows %s, want trusted (stale cache served)", list.Devices[0].TrustStatus)
	}
}

func TestFailedTrustLeavesStateUnchanged(t *testing.T) {
	f := &trustFixture{
		status:   TrustPending,
		trustErr: &APIError{Status: http.StatusInternalServerError},
	}
	g := &fakeGateway{handle: f.handler()}
	tc := newTestCoordinator(t, g)

	ctx := context.Background()
	if _, err := tc.TrustDevice(ctx, "dev-1"); err == nil {
		t.Fatal("TrustDevice should surface the service error")
	}

	device, err := tc.findDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("findDevice failed: %v", err)
	}
	if device.TrustStatus != TrustPending {
		t.Errorf("TrustStatus after failed call = %s, want pending", device.TrustStatus)
	}
}

func TestTrustRevokedDeviceRejectedLocally(t *testing.T) {
	f := &trustFixture{status: TrustRevoked}
	g := &fakeGateway{handle: f.handler()}
	tc := newTestCoordinator(t, g)

	_, err := tc.TrustDevice(context.Background(), "dev-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("TrustDevice on revoked device = %v, want ErrInvalidTransition", err)
	}
	if got := g.callCount("/dev-1/trust"); got != 0 {
		t.Errorf("Illegal transition reached the service %d times, want 0", got)
	}
}

func TestTrustUnknownDevice(t *testing.T) {
	f := &trustFixture{status: TrustPending}
	g := &fakeGateway{handle: f.handler()}
	tc := newTestCoordinator(t, g)

	_, err := tc.TrustDevice(context.Background(), "dev-404")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("TrustDevice on unknown id = %v, want ErrDeviceNotFound", err)
	}
}
