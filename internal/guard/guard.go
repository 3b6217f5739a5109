// Package guard blocks screen changes and logout while action-required
// notifications are unhandled, and exposes the emergency recovery view.
package guard

import (
	"context"
	"sync"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/meruscrap/pimapos/internal/queue"
	"github.com/meruscrap/pimapos/internal/store"
	"go.uber.org/zap"
)

// DestinationLogout is the destination name used when gating sign-out. It is
// blocked under exactly the same conditions as any screen change.
const DestinationLogout = "logout"

// NavigationGuard decides whether the operator may leave the current screen.
type NavigationGuard struct {
	mu sync.Mutex

	queue *queue.Queue
	store *store.Store

	// blockedDestination records where the operator last tried to go while
	// blocked, so the UI can resume the navigation after handling.
	blockedDestination string
}

// New creates a guard over the given queue and store.
func New(q *queue.Queue, st *store.Store) *NavigationGuard {
	return &NavigationGuard{queue: q, store: st}
}

// CanLeave reports whether navigation is currently allowed: no unhandled,
// undismissed notification with the modal visible.
func (g *NavigationGuard) CanLeave() bool {
	return !(g.queue.UnhandledCount() > 0 && g.queue.IsVisible())
}

// AttemptNavigate returns true and clears any recorded block when leaving is
// allowed. When blocked it records the destination, logs the refusal with the
// pending count, and returns false.
func (g *NavigationGuard) AttemptNavigate(destination string) bool {
	if g.CanLeave() {
		g.mu.Lock()
		g.blockedDestination = ""
		g.mu.Unlock()
		return true
	}

	g.mu.Lock()
	g.blockedDestination = destination
	g.mu.Unlock()

	pending := g.queue.UnhandledCount()
	metrics.Get().NavigationsBlocked.Inc()
	logger.Log.Info("Navigation blocked by pending notifications",
		zap.String("destination", destination),
		zap.Int("pending", pending),
	)
	return false
}

// BlockedDestination returns where the operator last tried to navigate while
// blocked, or "" if none.
func (g *NavigationGuard) BlockedDestination() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedDestination
}

// PendingCount returns the number of notifications currently blocking.
func (g *NavigationGuard) PendingCount() int {
	return g.queue.UnhandledCount()
}

// GetPendingNotifications is the emergency-recovery escape hatch: every
// not-handled record within the recovery window, straight from the backing
// store. Records flagged handled can never appear here, so recovery cannot
// resurrect them.
func (g *NavigationGuard) GetPendingNotifications(ctx context.Context) ([]models.NotificationRecord, error) {
	return g.store.GetPending(ctx)
}
