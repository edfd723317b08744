package trustkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/spidy092/trustkit/cache"
)

// fakeGateway implements Gateway for tests. The handle func receives
// "METHOD path" and the decoded request body, and returns the response
// payload to encode into out.
type fakeGateway struct {
	mu     sync.Mutex
	handle func(ctx context.Context, route string, body any) (any, error)
	calls  []string
}

func (g *fakeGateway) invoke(ctx context.Context, method, path string, body, out any) error {
	route := method + " " + path

	g.mu.Lock()
	g.calls = append(g.calls, route)
	handle := g.handle
	g.mu.Unlock()

	if handle == nil {
		return fmt.Errorf("fakeGateway: no handler for %s", route)
	}

	resp, err := handle(ctx, route, body)
	if err != nil {
		return err
	}
	if out == nil || resp == nil {
		return nil
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (g *fakeGateway) Get(ctx context.Context, path string, out any) error {
	return g.invoke(ctx, "GET", path, nil, out)
}

func (g *fakeGateway) Post(ctx context.Context, path string, body, out any) error {
	return g.invoke(ctx, "POST", path, body, out)
}

func (g *fakeGateway) Put(ctx context.Context, path string, body, out any) error {
	return g.invoke(ctx, "PUT", path, body, out)
}

func (g *fakeGateway) Delete(ctx context.Context, path string, body, out any) error {
	return g.invoke(ctx, "DELETE", path, body, out)
}

// callCount returns how many recorded routes contain the fragment.
func (g *fakeGateway) callCount(fragment string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, call := range g.calls {
		if strings.Contains(call, fragment) {
			n++
		}
	}
	return n
}

// testCoordinator wires a coordinator to a fake gateway with an in-memory
// cache and counts forced logouts.
type testCoordinator struct {
	*Coordinator
	gateway *fakeGateway
	cache   *cache.Memory

	mu      sync.Mutex
	logouts int
}

func (tc *testCoordinator) logoutCount() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.logouts
}

func newTestCoordinator(t *testing.T, g *fakeGateway, mutate ...func(*Config)) *testCoordinator {
	t.Helper()

	mem := cache.NewMemory()
	t.Cleanup(func() { mem.Close() })

	tc := &testCoordinator{gateway: g, cache: mem}
	cfg := Config{
		Gateway: g,
		Cache:   mem,
		Logout: func() {
			tc.mu.Lock()
			tc.logouts++
			tc.mu.Unlock()
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	tc.Coordinator = c
	return tc
}

// deviceListHandler answers GET /trusted-devices with the given devices.
func deviceListHandler(devices func() []Device) func(ctx context.Context, route string, body any) (any, error) {
	return func(_ context.Context, route string, _ any) (any, error) {
		if route == "GET "+pathDevices {
			d := devices()
			return deviceListResponse{Success: true, Data: d, Count: len(d)}, nil
		}
		return nil, fmt.Errorf("fakeGateway: no handler for %s", route)
	}
}
