package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agendasync/agendasync/internal/config"
	"github.com/agendasync/agendasync/internal/models"
	"github.com/agendasync/agendasync/internal/password"
	"github.com/agendasync/agendasync/internal/reconcile"
	"github.com/agendasync/agendasync/internal/sessions"
	"github.com/agendasync/agendasync/pkg/logger"
	"github.com/agendasync/agendasync/pkg/metrics"
	"github.com/agendasync/agendasync/pkg/middleware"
)

// stateCookie carries the CSRF state between the /auth/google redirect and
// the provider callback.
const stateCookie = "agendasync_oauth_state"

const stateTTL = 10 * time.Minute

// CredentialsRequest is the register/login payload.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Provider is the slice of the OAuth collaborator the handler needs.
// Satisfied by *oauth.GoogleProvider and by test fakes.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (reconcile.Profile, reconcile.TokenPair, error)
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg        *config.Config
	passwords  *password.Service
	reconciler *reconcile.Service
	manager    *sessions.Manager
	provider   Provider
}

func NewAuthHandler(cfg *config.Config, pw *password.Service, rec *reconcile.Service, mgr *sessions.Manager, provider Provider) *AuthHandler {
	return &AuthHandler{cfg: cfg, passwords: pw, reconciler: rec, manager: mgr, provider: provider}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)
	a.POST("/logout", h.Logout)
	a.GET("/me", middleware.RequireSession(h.manager), h.Me)
	if h.provider != nil {
		a.GET("/google", h.GoogleRedirect)
		a.GET("/google/callback", h.GoogleCallback)
	}
}

// Me returns the sanitized identity behind the current session.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": identity, "linked": identity.Linked()})
}

// RegisterUser creates a local-only identity from an email/password pair.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.passwords.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrDuplicateEmail):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, password.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		default:
			logger.Errorf("registration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": identity})
}

// Login verifies local credentials and establishes a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.passwords.Verify(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, password.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("password", "failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		logger.Errorf("login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if err := h.establishSession(c, identity); err != nil {
		return
	}
	metrics.Logins.WithLabelValues("password", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"user": identity})
}

// Logout destroys the server-side session and clears the cookie. Idempotent.
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Request.Cookie(sessions.CookieName); err == nil && cookie.Value != "" {
		if err := h.manager.Destroy(c.Request.Context(), cookie.Value); err != nil {
			logger.Errorf("failed to destroy session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
	}
	sessions.ClearCookie(c.Writer, h.cookieOptions())
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GoogleRedirect sends the user to Google's consent screen with a fresh
// CSRF state pinned in a short-lived cookie.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	state, err := sessions.NewID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateTTL.Seconds()), "/", "", h.cfg.Session.CookieSecure, true)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// GoogleCallback finishes the authorization-code flow: code exchange,
// identity reconciliation, session establishment.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	cookie, err := c.Request.Cookie(stateCookie)
	if err != nil || state == "" || cookie.Value != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	// state is single-use
	c.SetCookie(stateCookie, "", -1, "/", "", h.cfg.Session.CookieSecure, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	profile, tokens, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		logger.Errorf("google code exchange failed: %v", err)
		metrics.Logins.WithLabelValues("google", "failure").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	identity, err := h.reconciler.Reconcile(c.Request.Context(), profile, tokens)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrAccountConflict):
			// surfaced, never swallowed: the user must re-link explicitly
			metrics.Reconciliations.WithLabelValues("conflict").Inc()
			metrics.Logins.WithLabelValues("google", "failure").Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "this email is already linked to a different google account"})
		case errors.Is(err, reconcile.ErrIncompleteProfile):
			metrics.Logins.WithLabelValues("google", "failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		default:
			logger.Errorf("reconciliation failed: %v", err)
			metrics.Reconciliations.WithLabelValues("error").Inc()
			metrics.Logins.WithLabelValues("google", "failure").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}
	metrics.Reconciliations.WithLabelValues("success").Inc()

	if err := h.establishSession(c, identity); err != nil {
		return
	}
	metrics.Logins.WithLabelValues("google", "success").Inc()
	c.JSON(http.StatusOK, gin.H{"user": identity})
}

func (h *AuthHandler) cookieOptions() sessions.CookieOptions {
	return sessions.CookieOptions{Secure: h.cfg.Session.CookieSecure}
}

// establishSession creates the server-side claim and sets the cookie. On
// failure it writes the error response itself and returns non-nil.
func (h *AuthHandler) establishSession(c *gin.Context, identity *models.Identity) error {
	sid, err := h.manager.Establish(c.Request.Context(), identity)
	if err != nil {
		logger.Errorf("failed to establish session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return err
	}
	sessions.SetCookie(c.Writer, sid, time.Now().Add(h.manager.TTL()), h.cookieOptions())
	return nil
}
