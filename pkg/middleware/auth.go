package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agendasync/agendasync/internal/models"
	"github.com/agendasync/agendasync/internal/sessions"
)

// IdentityKey is the gin context key the resolved identity is stored under.
const IdentityKey = "identity"

// Resolver is the minimal interface the middleware depends on.
// Satisfied by *sessions.Manager and by test fakes.
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) (*models.Identity, error)
}

// RequireSession returns a Gin middleware that resolves the session cookie to
// an identity and aborts with 401 when the request is anonymous. The identity
// is re-fetched from the store on every request; nothing cached in the claim
// is trusted beyond the id.
func RequireSession(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(sessions.CookieName)
		if err != nil || cookie.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), cookie.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session resolution failed"})
			return
		}
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// IdentityFrom extracts the identity stored by RequireSession.
func IdentityFrom(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*models.Identity)
	return identity, ok
}
