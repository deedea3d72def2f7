package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agendasync/agendasync/internal/identities"
	"github.com/agendasync/agendasync/internal/models"
	"github.com/agendasync/agendasync/internal/password"
)

// ErrAccountConflict is returned when a login's provider subject id does not
// match the one already linked to the email's identity, or when the store
// rejects the save for a uniqueness violation. Never swallowed by callers:
// it means the user has to re-link explicitly, not that we should merge or
// reassign records.
var ErrAccountConflict = errors.New("account conflict")

// ErrIncompleteProfile is returned when the provider profile lacks the subject
// id or primary email the reconciliation keys on.
var ErrIncompleteProfile = errors.New("incomplete provider profile")

// Profile is the normalized identity tuple a completed authorization-code
// exchange yields. Facts only, no decisions.
type Profile struct {
	SubjectID string
	Email     string
	Name      string
}

// TokenPair is the freshly issued provider credential pair. Always attached
// to the identity as a unit. Expiry is the access token's expiry; the token
// source needs it to know when to refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Service finds-or-creates the identity matching an OAuth login and decides
// linking. Email is the reconciliation key: a user may have registered
// locally first, so the provider subject id is never trusted as primary key.
type Service struct {
	repo identities.Repository
}

func NewService(repo identities.Repository) *Service {
	return &Service{repo: repo}
}

// Reconcile runs the per-login decision procedure:
//
//	no identity for the email        -> create one from the profile + tokens
//	identity exists, providerId unset -> link it (set providerId), refresh tokens
//	identity exists, same providerId  -> refresh tokens (idempotent re-login)
//	identity exists, other providerId -> ErrAccountConflict, nothing written
//
// The store's uniqueness constraints guard the lookup-to-save window; a racing
// writer surfaces as ErrConflict and is reported as ErrAccountConflict.
func (s *Service) Reconcile(ctx context.Context, profile Profile, tokens TokenPair) (*models.Identity, error) {
	if profile.SubjectID == "" || profile.Email == "" {
		return nil, ErrIncompleteProfile
	}
	email := password.NormalizeEmail(profile.Email)

	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}

	if identity == nil {
		identity = &models.Identity{
			Email:      email,
			Name:       profile.Name,
			ProviderID: profile.SubjectID,
		}
	} else {
		if identity.ProviderID != "" && identity.ProviderID != profile.SubjectID {
			return nil, fmt.Errorf("%w: email %s already linked to another google account", ErrAccountConflict, email)
		}
		identity.ProviderID = profile.SubjectID
		if identity.Name == "" {
			identity.Name = profile.Name
		}
	}

	// most recent login wins; the pair is replaced as a unit
	identity.AccessToken = tokens.AccessToken
	identity.RefreshToken = tokens.RefreshToken
	identity.TokenExpiry = tokens.Expiry

	saved, err := s.repo.Save(ctx, identity)
	if err != nil {
		if errors.Is(err, identities.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrAccountConflict, err)
		}
		return nil, err
	}
	return saved, nil
}
