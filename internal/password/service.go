package password

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/agendasync/agendasync/internal/identities"
	"github.com/agendasync/agendasync/internal/models"
)

var (
	// ErrDuplicateEmail is returned by Register when the email already has an identity.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned by Verify for unknown email and wrong
	// password alike. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordTooShort is returned by Register for passwords under 8 characters.
	ErrPasswordTooShort = errors.New("password too short")
)

const minPasswordLength = 8

// bcrypt.DefaultCost is 10, the floor we want for stored hashes.
const hashCost = bcrypt.DefaultCost

// Service validates local email/password credentials against the identity
// store and creates new local-only identities.
type Service struct {
	repo identities.Repository
}

func NewService(repo identities.Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a local-only identity for the email. The stored record
// carries only the bcrypt hash; provider fields stay empty until a Google
// login links them.
func (s *Service) Register(ctx context.Context, email, plaintext string) (*models.Identity, error) {
	email = NormalizeEmail(email)
	if len(plaintext) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity, err := s.repo.Save(ctx, &models.Identity{
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		// a racing registration for the same email lands here
		if errors.Is(err, identities.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return identity, nil
}

// Verify checks an email/password pair. Unknown email, OAuth-only identity and
// hash mismatch all return the same ErrInvalidCredentials; the comparison is
// bcrypt's constant-time CompareHashAndPassword, never a plaintext compare.
func (s *Service) Verify(ctx context.Context, email, plaintext string) (*models.Identity, error) {
	identity, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup by email: %w", err)
	}
	if identity == nil || identity.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(plaintext)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}

// NormalizeEmail lowercases and trims an email so both auth paths reconcile
// on the same key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
