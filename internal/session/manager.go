package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"emicalc/internal/core"
	applog "emicalc/internal/log"
)

const lockStripes = 64

// Hook observes calculator changes once the new state has been saved.
type Hook func(ctx context.Context, sessionID string, ch core.Change)

// Manager loads, mutates and saves session calculators. Mutations of the
// same session are serialised; different sessions proceed in parallel.
type Manager struct {
	store  Store
	limits core.Limits
	locks  [lockStripes]sync.Mutex
	hooks  []Hook
}

func NewManager(store Store, limits core.Limits) *Manager {
	return &Manager{store: store, limits: limits}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an id produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// OnChange registers a hook run after every successful Update.
func (m *Manager) OnChange(h Hook) {
	m.hooks = append(m.hooks, h)
}

// Limits returns the control ranges shared by all sessions.
func (m *Manager) Limits() core.Limits {
	return m.limits
}

func (m *Manager) lock(id string) *sync.Mutex {
	return &m.locks[xxhash.Sum64String(id)%lockStripes]
}

// load returns the stored calculator or a fresh default one.
func (m *Manager) load(ctx context.Context, id string) (*core.Calculator, error) {
	s, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
		return core.Restore(m.limits, s), nil
	case errors.Is(err, ErrSessionNotFound):
		return core.NewCalculator(m.limits), nil
	default:
		return nil, err
	}
}

// Get returns the session state, starting a default session for unknown ids.
func (m *Manager) Get(ctx context.Context, id string) (core.Snapshot, error) {
	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()

	calc, err := m.load(ctx, id)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	s := calc.Snapshot()
	if err := m.store.Save(ctx, id, s); err != nil {
		return core.Snapshot{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Update applies fn to the session calculator and saves the result.
// When fn fails nothing is saved and the unchanged state is returned with the error.
func (m *Manager) Update(ctx context.Context, id string, fn func(*core.Calculator) error) (core.Snapshot, error) {
	var changes []core.Change

	mu := m.lock(id)
	mu.Lock()
	calc, err := m.load(ctx, id)
	if err != nil {
		mu.Unlock()
		return core.Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	calc.OnChange(func(ch core.Change) { changes = append(changes, ch) })

	if err := fn(calc); err != nil {
		mu.Unlock()
		return calc.Snapshot(), err
	}
	s := calc.Snapshot()
	if err := m.store.Save(ctx, id, s); err != nil {
		mu.Unlock()
		return s, fmt.Errorf("save session: %w", err)
	}
	mu.Unlock()

	for _, ch := range changes {
		for _, h := range m.hooks {
			h(ctx, id, ch)
		}
	}
	if len(changes) > 0 {
		applog.FromContext(ctx).WithComponent(applog.ComponentSession).DebugContext(ctx, "Session updated",
			applog.FieldSessionID, id, "changes", len(changes))
	}
	return s, nil
}
