// Package handlers exposes the notification subsystem to the POS UI shell
// over HTTP. The shell keeps no business state of its own; every decision
// (dedup, exclusion, guard, resume) lives behind these endpoints.
package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/meruscrap/pimapos/internal/auth"
	"github.com/meruscrap/pimapos/internal/guard"
	"github.com/meruscrap/pimapos/internal/lifecycle"
	"github.com/meruscrap/pimapos/internal/permissions"
	"github.com/meruscrap/pimapos/internal/photos"
	"github.com/meruscrap/pimapos/internal/queue"
	"github.com/meruscrap/pimapos/internal/session"
	"github.com/meruscrap/pimapos/internal/store"
)

// Handlers contains all HTTP handlers for the notification API.
type Handlers struct {
	queue     *queue.Queue
	store     *store.Store
	guard     *guard.NavigationGuard
	lifecycle *lifecycle.Controller
	perms     *permissions.Session
	registry  *session.Registry
	tokens    *auth.TokenProvider
	fetcher   *photos.Fetcher

	// lastToken avoids republishing an auth event for every request carrying
	// the same bearer token.
	mu        sync.Mutex
	lastToken string
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	q *queue.Queue,
	st *store.Store,
	g *guard.NavigationGuard,
	lc *lifecycle.Controller,
	perms *permissions.Session,
	registry *session.Registry,
	tokens *auth.TokenProvider,
	fetcher *photos.Fetcher,
) *Handlers {
	return &Handlers{
		queue:     q,
		store:     st,
		guard:     g,
		lifecycle: lc,
		perms:     perms,
		registry:  registry,
		tokens:    tokens,
		fetcher:   fetcher,
	}
}

// AuthMiddleware validates the bearer token and mirrors it into the auth
// provider. A token change is what drives SIGNED_IN versus TOKEN_REFRESHED
// downstream; repeats of the same token publish nothing.
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		h.mu.Lock()
		changed := token != h.lastToken
		h.mu.Unlock()

		if changed {
			if err := h.tokens.SetToken(token); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "message": err.Error()})
				c.Abort()
				return
			}
			h.mu.Lock()
			h.lastToken = token
			h.mu.Unlock()
		}

		c.Next()
	}
}
