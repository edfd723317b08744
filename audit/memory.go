package audit

import (
	"context"
	"sync"
)

// Memory implements Recorder with an in-process bounded ring. Oldest events
// are dropped once the limit is hit. Useful as the zero-config default and
// for testing.
type Memory struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemory creates an in-memory recorder holding at most limit events.
// A limit <= 0 defaults to 1000.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 1000
	}
	return &Memory{limit: limit}
}

// Record appends an event, evicting the oldest if the ring is full.
func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)
	if len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}

	out := make([]Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// Close is a no-op for the memory recorder.
func (m *Memory) Close() error {
	return nil
}
