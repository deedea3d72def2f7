package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendasync/agendasync/internal/config"
	"github.com/agendasync/agendasync/internal/identities"
	"github.com/agendasync/agendasync/internal/password"
	"github.com/agendasync/agendasync/internal/reconcile"
	"github.com/agendasync/agendasync/internal/sessions"
)

type memorySessionRepo struct {
	mu    sync.Mutex
	items map[string]*sessions.Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{items: make(map[string]*sessions.Session)}
}

func (r *memorySessionRepo) Create(_ context.Context, s *sessions.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *memorySessionRepo) Get(_ context.Context, id string) (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memorySessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type fakeProvider struct {
	profile reconcile.Profile
	tokens  reconcile.TokenPair
	err     error
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (p *fakeProvider) Exchange(context.Context, string) (reconcile.Profile, reconcile.TokenPair, error) {
	return p.profile, p.tokens, p.err
}

type authFixture struct {
	router   *gin.Engine
	repo     *identities.MemoryRepository
	sessions *memorySessionRepo
	provider *fakeProvider
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := identities.NewMemoryRepository()
	sessRepo := newMemorySessionRepo()
	mgr := sessions.NewManager(sessRepo, repo, time.Hour)
	provider := &fakeProvider{}

	cfg := &config.Config{}
	h := NewAuthHandler(cfg, password.NewService(repo), reconcile.NewService(repo), mgr, provider)

	router := gin.New()
	h.Register(router.Group("/"))

	return &authFixture{router: router, repo: repo, sessions: sessRepo, provider: provider}
}

func (f *authFixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessions.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestRegisterUser(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, w.Code)

	stored, err := f.repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.NotContains(t, w.Body.String(), stored.PasswordHash)
}

func TestRegisterUserDuplicate(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "another pass"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterUserShortPassword(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterUserMissingFields(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})

	w := f.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})

	w := f.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "wrong horse"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/login", gin.H{"email": "nobody@example.com", "password": "whatever123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe(t *testing.T) {
	f := newAuthFixture(t)
	f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})
	login := f.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "correct horse"})
	cookie := sessionCookie(t, login)

	w := f.do(t, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestMeAnonymous(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})
	login := f.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "correct horse"})
	cookie := sessionCookie(t, login)

	w := f.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	// the server-side claim is gone, the old cookie no longer authenticates
	w = f.do(t, http.MethodGet, "/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleRedirect(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodGet, "/auth/google", nil)
	require.Equal(t, http.StatusFound, w.Code)

	var state *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	require.NotNil(t, state, "state cookie must be set")
	assert.True(t, state.HttpOnly)
	assert.Contains(t, w.Header().Get("Location"), "state="+state.Value)
}

func googleCallback(t *testing.T, f *authFixture) *httptest.ResponseRecorder {
	t.Helper()
	redirect := f.do(t, http.MethodGet, "/auth/google", nil)
	require.Equal(t, http.StatusFound, redirect.Code)
	var state *http.Cookie
	for _, c := range redirect.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	require.NotNil(t, state)
	return f.do(t, http.MethodGet, "/auth/google/callback?code=authcode&state="+state.Value, nil, state)
}

func TestGoogleCallback(t *testing.T) {
	f := newAuthFixture(t)
	f.provider.profile = reconcile.Profile{SubjectID: "google-sub-1", Email: "ada@example.com", Name: "Ada"}
	f.provider.tokens = reconcile.TokenPair{AccessToken: "at", RefreshToken: "rt"}

	w := googleCallback(t, f)
	require.Equal(t, http.StatusOK, w.Code)
	sessionCookie(t, w)

	stored, err := f.repo.FindByProviderID(context.Background(), "google-sub-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, "at", stored.AccessToken)
}

func TestGoogleCallbackLinksLocalAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})

	f.provider.profile = reconcile.Profile{SubjectID: "google-sub-1", Email: "ada@example.com", Name: "Ada"}
	f.provider.tokens = reconcile.TokenPair{AccessToken: "at", RefreshToken: "rt"}

	w := googleCallback(t, f)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := f.repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "google-sub-1", stored.ProviderID)
	assert.NotEmpty(t, stored.PasswordHash, "linking must not wipe the password")
}

func TestGoogleCallbackAccountConflict(t *testing.T) {
	f := newAuthFixture(t)
	f.provider.profile = reconcile.Profile{SubjectID: "google-sub-1", Email: "ada@example.com", Name: "Ada"}
	f.provider.tokens = reconcile.TokenPair{AccessToken: "at"}
	w := googleCallback(t, f)
	require.Equal(t, http.StatusOK, w.Code)

	f.provider.profile.SubjectID = "google-sub-2"
	w = googleCallback(t, f)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGoogleCallbackStateMismatch(t *testing.T) {
	f := newAuthFixture(t)

	redirect := f.do(t, http.MethodGet, "/auth/google", nil)
	var state *http.Cookie
	for _, c := range redirect.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	require.NotNil(t, state)

	w := f.do(t, http.MethodGet, "/auth/google/callback?code=authcode&state=forged", nil, state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleCallbackMissingState(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodGet, "/auth/google/callback?code=authcode", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleCallbackExchangeFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.provider.err = errors.New("provider says no")

	w := googleCallback(t, f)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// Full journey: local registration, Google linking, then password login
// still works and the linked tokens survive.
func TestRegisterLinkLoginFlow(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", gin.H{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, w.Code)

	f.provider.profile = reconcile.Profile{SubjectID: "google-sub-1", Email: "Ada@Example.com", Name: "Ada"}
	f.provider.tokens = reconcile.TokenPair{AccessToken: "at", RefreshToken: "rt"}
	w = googleCallback(t, f)
	require.Equal(t, http.StatusOK, w.Code)

	login := f.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, login.Code)

	me := f.do(t, http.MethodGet, "/auth/me", nil, sessionCookie(t, login))
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"linked":true`)

	stored, err := f.repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rt", stored.RefreshToken)
}
