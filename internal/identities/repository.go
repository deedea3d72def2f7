package identities

import (
	"context"
	"errors"

	"github.com/agendasync/agendasync/internal/models"
)

// ErrConflict is returned by Save when the write would violate the uniqueness
// of email or providerId against a different record. Callers wrap it into
// their own error kinds; it is never retried here.
var ErrConflict = errors.New("identity conflict")

// Repository is the single source of truth for identities. Lookups return
// (nil, nil) when no record matches. Save is an upsert: records without an ID
// are inserted with a fresh one, records with an ID replace the stored copy.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	FindByProviderID(ctx context.Context, providerID string) (*models.Identity, error)
	Save(ctx context.Context, identity *models.Identity) (*models.Identity, error)
}
