package identities

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agendasync/agendasync/internal/models"
)

// MemoryRepository is an in-memory Repository used for unit tests and local
// development without Mongo. It enforces the same uniqueness invariants the
// Mongo indexes do, under a single mutex, so reconciliation races surface as
// ErrConflict here too.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*models.Identity
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*models.Identity)}
}

func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, identity := range m.store {
		if identity.Email == email {
			return copyOf(identity), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if identity, ok := m.store[id]; ok {
		return copyOf(identity), nil
	}
	return nil, nil
}

func (m *MemoryRepository) FindByProviderID(ctx context.Context, providerID string) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, identity := range m.store {
		if identity.ProviderID != "" && identity.ProviderID == providerID {
			return copyOf(identity), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Save(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// a provider binding is written once; rebinding or clearing it is a
	// conflict even on the identity's own record
	if existing, ok := m.store[identity.ID]; ok {
		if existing.ProviderID != "" && identity.ProviderID != existing.ProviderID {
			return nil, ErrConflict
		}
	}

	for id, existing := range m.store {
		if id == identity.ID {
			continue
		}
		if existing.Email == identity.Email {
			return nil, ErrConflict
		}
		if identity.ProviderID != "" && existing.ProviderID == identity.ProviderID {
			return nil, ErrConflict
		}
	}

	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	m.store[identity.ID] = copyOf(identity)
	return copyOf(identity), nil
}

// Delete removes an identity. Only used by tests to simulate an identity
// deleted externally while a session still references it.
func (m *MemoryRepository) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
}

func copyOf(identity *models.Identity) *models.Identity {
	c := *identity
	return &c
}
