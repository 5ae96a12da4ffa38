package sync

import (
	"context"
	stdsync "sync"

	"go.uber.org/zap"

	"taskboard/internal/docstore"
	"taskboard/internal/notify"
)

// Manager hands out one live TaskStore per signed-in user and owns their
// subscription lifecycles, so no HTTP handler ever holds a dangling
// cancellation handle.
type Manager struct {
	ctx       context.Context
	store     docstore.Store
	publisher EventPublisher
	notifier  notify.Notifier
	logger    *zap.Logger

	mu     stdsync.Mutex
	stores map[string]*TaskStore
}

// NewManager builds a manager. ctx bounds every subscription it starts.
func NewManager(ctx context.Context, store docstore.Store, publisher EventPublisher, notifier notify.Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		ctx:       ctx,
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		stores:    map[string]*TaskStore{},
	}
}

// ForUser returns the user's task store, starting its subscription on first
// use.
func (m *Manager) ForUser(userID string) (*TaskStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts, ok := m.stores[userID]; ok {
		return ts, nil
	}

	ts := NewTaskStore(m.store, m.publisher, m.notifier, m.logger)
	if err := ts.Start(m.ctx, userID); err != nil {
		return nil, err
	}
	m.stores[userID] = ts
	return ts, nil
}

// Release stops and forgets the user's store (sign-out path).
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts, ok := m.stores[userID]; ok {
		ts.Stop()
		delete(m.stores, userID)
	}
}

// Shutdown stops every live store.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ts := range m.stores {
		ts.Stop()
		delete(m.stores, id)
	}
}
