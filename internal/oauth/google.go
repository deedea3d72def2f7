package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/agendasync/agendasync/internal/reconcile"
)

const googleIssuer = "https://accounts.google.com"

// calendarScope grants read access to the user's calendars alongside the
// identity scopes. Requested up front so the tokens stored at login can
// serve the events endpoint later.
const calendarScope = "https://www.googleapis.com/auth/calendar.readonly"

// GoogleProvider wraps the authorization-code flow against Google: building
// the consent URL, exchanging the callback code, and verifying the id_token.
// It yields identity facts and tokens only; reconciliation decisions live in
// the reconcile package.
type GoogleProvider struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogle discovers Google's OIDC endpoints and prepares the oauth2 config.
func NewGoogle(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	return newProvider(ctx, googleIssuer, clientID, clientSecret, redirectURL)
}

// newProvider takes the issuer explicitly so tests can point it at a fake.
func newProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover google oidc provider: %w", err)
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", calendarScope},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthCodeURL returns the consent URL for the given CSRF state. Offline access
// with forced consent so Google issues a refresh token on every login.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// TokenSource returns a refreshing token source for stored credentials. The
// oauth2 package owns refresh semantics; callers just hand the source to the
// calendar client.
func (p *GoogleProvider) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return p.cfg.TokenSource(ctx, token)
}

// Exchange trades the authorization code for tokens and returns the verified
// profile plus the freshly issued token pair. Signature checks are delegated
// to the oidc verifier; the caller trusts the result as-is.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (reconcile.Profile, reconcile.TokenPair, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return reconcile.Profile{}, reconcile.TokenPair{}, fmt.Errorf("google token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return reconcile.Profile{}, reconcile.TokenPair{}, errors.New("google did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return reconcile.Profile{}, reconcile.TokenPair{}, fmt.Errorf("google id_token verification: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return reconcile.Profile{}, reconcile.TokenPair{}, fmt.Errorf("google id_token claims: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return reconcile.Profile{}, reconcile.TokenPair{}, errors.New("google id_token missing required claims")
	}

	profile := reconcile.Profile{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
	}
	tokens := reconcile.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	return profile, tokens, nil
}
