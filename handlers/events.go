package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/agendasync/agendasync/internal/calendar"
	"github.com/agendasync/agendasync/pkg/logger"
	"github.com/agendasync/agendasync/pkg/metrics"
	"github.com/agendasync/agendasync/pkg/middleware"
)

// TokenSourcer turns stored credentials into a refreshing token source.
// Satisfied by *oauth.GoogleProvider and by test fakes.
type TokenSourcer interface {
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}

// EventsHandler relays upcoming calendar events for the session's identity.
type EventsHandler struct {
	sources TokenSourcer
	client  *calendar.Client
}

func NewEventsHandler(sources TokenSourcer, client *calendar.Client) *EventsHandler {
	return &EventsHandler{sources: sources, client: client}
}

// Register routes under /calendar. The resolver guards every route: only a
// resolved session identity reaches the handlers.
func (h *EventsHandler) Register(rg *gin.RouterGroup, resolver middleware.Resolver) {
	cal := rg.Group("/calendar", middleware.RequireSession(resolver))
	cal.GET("/events", h.ListEvents)
}

// ListEvents returns up to ten upcoming events from the identity's primary
// calendar, ordered by start time.
func (h *EventsHandler) ListEvents(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	cred, err := calendar.BuildCredential(identity)
	if err != nil {
		if errors.Is(err, calendar.ErrMissingTokens) {
			// explicit prompt to link, never a silent fallback
			c.JSON(http.StatusBadRequest, gin.H{"error": "no google account linked; visit /auth/google to link one"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build credential"})
		return
	}

	events, err := h.client.ListUpcomingEvents(c.Request.Context(), h.sources.TokenSource(c.Request.Context(), cred), calendar.DefaultMaxResults)
	if err != nil {
		logger.Errorf("calendar listing failed for identity %s: %v", identity.ID, err)
		metrics.CalendarRequests.WithLabelValues("error").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch calendar events"})
		return
	}
	metrics.CalendarRequests.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"events": events})
}
