package secevent

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps events in memory. Intended for tests and
// single-process deployments; the log lives only as long as the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStorage creates an empty in-memory event store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends an event.
func (m *MemoryStorage) Store(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of all stored events in append order.
func (m *MemoryStorage) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.events)
}

// EventsOfType returns stored events matching the given type, in append order.
func (m *MemoryStorage) EventsOfType(typ EventType) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, e := range m.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
