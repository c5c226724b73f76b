package session

import (
	"context"
	"log/slog"
	"time"

	"emicalc/internal/cache"
	"emicalc/internal/core"
	applog "emicalc/internal/log"
)

// MemoryStore keeps sessions in process, bounded by size and idle TTL.
type MemoryStore struct {
	items *cache.LRUCache[core.Snapshot]
}

func NewMemoryStore(maxSessions int, ttl time.Duration) *MemoryStore {
	items := cache.NewLRUCache[core.Snapshot](maxSessions, ttl)
	items.OnEvict(func(id string, _ core.Snapshot) {
		slog.Debug("Session evicted", applog.FieldComponent, applog.ComponentSession, applog.FieldSessionID, id)
	})
	return &MemoryStore{items: items}
}

// Cleaner exposes the underlying cache for periodic expiry.
func (m *MemoryStore) Cleaner() cache.Cleaner {
	return m.items
}

func (m *MemoryStore) Load(_ context.Context, id string) (core.Snapshot, error) {
	s, ok := m.items.Get(id)
	if !ok {
		return core.Snapshot{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, s core.Snapshot) error {
	m.items.Set(id, s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.items.Size()
}
