package trustkit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// validitySequence answers the validate endpoint with each result in order,
// repeating the last one.
func validitySequence(results ...any) func(ctx context.Context, route string, body any) (any, error) {
	var n atomic.Int64
	return func(_ context.Context, route string, _ any) (any, error) {
		if route != "GET "+pathValidate {
			return nil, errors.New("unexpected route: " + route)
		}
		i := int(n.Add(1)) - 1
		if i >= len(results) {
			i = len(results) - 1
		}
		switch r := results[i].(type) {
		case bool:
			return validityResponse{Valid: r}, nil
		case error:
			return nil, r
		default:
			return r, nil
		}
	}
}

func TestMonitorInvalidFiresOnce(t *testing.T) {
	g := &fakeGateway{handle: validitySequence(false)}
	tc := newTestCoordinator(t, g)

	var invalids atomic.Int64
	m := tc.StartMonitor(MonitorConfig{
		PollInterval: 5 * time.Millisecond,
		OnSessionInvalid: func(string) {
			invalids.Add(1)
		},
	})
	defer m.Stop()

	// Let several invalid polls land.
	time.Sleep(60 * time.Millisecond)

	if got := invalids.Load(); got != 1 {
		t.Errorf("OnSessionInvalid fired %d times for one episode, want 1", got)
	}
	if got := tc.logoutCount(); got != 1 {
		t.Errorf("Logout invoked %d times for one episode, want 1", got)
	}
}

func TestMonitorInvalidClearsCache(t *testing.T) {
	g := &fakeGateway{handle: validitySequence(false)}
	tc := newTestCoordinator(t, g)

	ctx := context.Background()
	if err := tc.cache.Set(ctx, keyDeviceList, []byte(`{}`), 0); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	m := tc.StartMonitor(MonitorConfig{PollInterval: 5 * time.Millisecond})
	defer m.Stop()
	time.Sleep(30 * time.Millisecond)

	if _, err := tc.cache.Get(ctx, keyDeviceList); err == nil {
		t.Error("Cache entry survived session invalidation")
	}
}

func TestMonitorRecoveryRearmsEpisode(t *testing.T) {
	g := &fakeGateway{handle: validitySequence(false, true, false)}
	tc := newTestCoordinator(t, g)

	var invalids atomic.Int64
	m := tc.StartMonitor(MonitorConfig{
		PollInterval: 5 * time.Millisecond,
		OnSessionInvalid: func(string) {
			invalids.Add(1)
		},
	})
	defer m.Stop()

	time.Sleep(60 * time.Millisecond)

	if got := invalids.Load(); got != 2 {
		t.Errorf("OnSessionInvalid fired %d times across two episodes, want 2", got)
	}
}

func TestMonitorAuthorizationFailureIsInvalidity(t *testing.T) {
	g := &fakeGateway{handle: validitySequence(&APIError{Status: http.StatusUnauthorized})}
	tc := newTestCoordinator(t, g)

	var invalids, errs atomic.Int64
	m := tc.StartMonitor(MonitorConfig{
		PollInterval:     5 * time.Millisecond,
		OnSessionInvalid: func(string) { invalids.Add(1) },
		OnError:          func(error) { errs.Add(1) },
	})
	defer m.Stop()
	time.Sleep(30 * time.Millisecond)

	if invalids.Load() != 1 {
		t.Errorf("OnSessionInvalid fired %d times on 401, want 1", invalids.Load())
	}
	if errs.Load() != 0 {
		t.Errorf("OnError fired %d times on 401, want 0", errs.Load())
	}
}

func TestMonitorTransportErrorIsNotInvalidity(t *testing.T) {
	g := &fakeGateway{handle: validitySequence(errors.New("dial tcp: connection refused"))}
	tc := newTestCoordinator(t, g)

	var invalids, errs atomic.Int64
	m := tc.StartMonitor(MonitorConfig{
		PollInterval:     5 * time.Millisecond,
		OnSessionInvalid: func(string) { invalids.Add(1) },
		OnError:          func(error) { errs.Add(1) },
	})
	defer m.Stop()
	time.Sleep(30 * time.Millisecond)

	if invalids.Load() != 0 {
		t.Errorf("OnSessionInvalid fired %d times on transport error, want 0", invalids.Load())
	}
	if errs.Load() == 0 {
		t.Error("OnError never fired for transport error")
	}
	if tc.logoutCount() != 0 {
		t.Errorf("Logout invoked %d times on transport error, want 0", tc.logoutCount())
	}
}

func TestMonitorStopDiscardsInFlightPoll(t *testing.T) {
	started := make(chan struct{}, 1)
	g := &fakeGateway{
		handle: func(ctx context.Context, route string, _ any) (any, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			// Hang until the monitor is cancelled, then report invalid.
			<-ctx.Done()
			return validityResponse{Valid: false}, nil
		},
	}
	tc := newTestCoordinator(t, g)

	var invalids atomic.Int64
	m := tc.StartMonitor(MonitorConfig{
		PollInterval:     5 * time.Millisecond,
		OnSessionInvalid: func(string) { invalids.Add(1) },
	})

	<-started
	m.Stop()

	if invalids.Load() != 0 {
		t.Error("In-flight poll fired OnSessionInvalid after Stop")
	}
	if tc.logoutCount() != 0 {
		t.Error("In-flight poll forced logout after Stop")
	}
}

func TestMonitorBusyPollIsSuppressed(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	g := &fakeGateway{
		handle: func(_ context.Context, route string, _ any) (any, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return validityResponse{Valid: true}, nil
		},
	}
	tc := newTestCoordinator(t, g)

	m := tc.StartMonitor(MonitorConfig{PollInterval: time.Hour})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Poll(context.Background())
	}()
	<-started

	// A second poll while the first is in flight must be a no-op.
	if err := m.Poll(context.Background()); err != nil {
		t.Errorf("Suppressed poll returned error: %v", err)
	}
	if got := g.callCount(pathValidate); got != 1 {
		t.Errorf("Overlapping polls reached the gateway %d times, want 1", got)
	}

	close(release)
	wg.Wait()
	m.Stop()

	if err := m.Poll(context.Background()); !errors.Is(err, ErrMonitorStopped) {
		t.Errorf("Poll after Stop returned %v, want ErrMonitorStopped", err)
	}
}
