package calendar

import (
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/agendasync/agendasync/internal/models"
)

// ErrMissingTokens is returned when a calendar call is attempted for an
// identity that never completed a Google login. Callers surface it as a
// prompt to link, never as a silent fallback.
var ErrMissingTokens = errors.New("identity has no provider tokens")

// BuildCredential wraps an identity's stored token pair into the shape the
// calendar client consumes. Pure adaptation, no I/O. The stored expiry is
// what lets the token source decide when to refresh; a record written before
// expiry tracking gets an already-expired stamp so the source refreshes
// instead of trusting a stale access token forever.
func BuildCredential(identity *models.Identity) (*oauth2.Token, error) {
	if identity.AccessToken == "" {
		return nil, ErrMissingTokens
	}
	expiry := identity.TokenExpiry
	if expiry.IsZero() && identity.RefreshToken != "" {
		expiry = time.Now().Add(-time.Minute)
	}
	return &oauth2.Token{
		AccessToken:  identity.AccessToken,
		RefreshToken: identity.RefreshToken,
		Expiry:       expiry,
	}, nil
}
