package sessions

import (
	"context"
	"time"

	"github.com/agendasync/agendasync/internal/identities"
	"github.com/agendasync/agendasync/internal/models"
)

// Manager maps opaque session ids to identities: Establish on login, Resolve
// on every request. It trusts nothing in the stored claim beyond the identity
// id and re-fetches the full record from the identity store each time.
type Manager struct {
	sessions   Repository
	identities identities.Repository
	ttl        time.Duration
}

func NewManager(sessions Repository, identities identities.Repository, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{sessions: sessions, identities: identities, ttl: ttl}
}

// TTL returns the session lifetime, for cookie expiry.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Establish stores a new claim for the identity and returns the session id.
func (m *Manager) Establish(ctx context.Context, identity *models.Identity) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", err
	}
	s := &Session{
		ID:         id,
		IdentityID: identity.ID,
		ExpiresAt:  time.Now().UTC().Add(m.ttl),
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return "", err
	}
	return id, nil
}

// Resolve returns the identity behind a session id, or (nil, nil) when the
// session is unknown, expired, or references an identity that no longer
// exists. A dangling claim is anonymous, not an error.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (*models.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	identity, err := m.identities.FindByID(ctx, s.IdentityID)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// IsAuthenticated reports whether the session id resolves to an identity.
func (m *Manager) IsAuthenticated(ctx context.Context, sessionID string) bool {
	identity, err := m.Resolve(ctx, sessionID)
	return err == nil && identity != nil
}

// Destroy removes the claim. Unknown ids are a no-op.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	return m.sessions.Delete(ctx, sessionID)
}
