// Package queue maintains the ordered in-memory working set of unhandled
// notifications behind both the modal queue and the bell dropdown.
//
// All mutations are serialized through one mutex; cross-session races are
// resolved by the backing store's write ordering plus the realtime bridge's
// reconciliation, never by local state.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/meruscrap/pimapos/internal/store"
	"go.uber.org/zap"
)

// RefreshFunc re-loads the queue from the backing store. Wired by the caller;
// used when a bell lookup misses.
type RefreshFunc func(ctx context.Context) error

// Queue is the navigable notification working set plus the bell read overlay.
type Queue struct {
	mu sync.Mutex

	store *store.Store
	sess  store.Session

	items   []models.NotificationData
	current int
	visible bool

	// read is the bell's local-only overlay. Never persisted.
	read map[string]bool

	refresh RefreshFunc

	// closeDelay defers the final clear after the last item is handled, so
	// the UI can play its exit transition. Zero in tests.
	closeDelay time.Duration
}

// New creates an empty queue.
func New(st *store.Store, sess store.Session) *Queue {
	return &Queue{
		store: st,
		sess:  sess,
		read:  make(map[string]bool),
	}
}

// SetRefreshFunc wires the refresh used by OpenFromBell misses.
func (q *Queue) SetRefreshFunc(refresh RefreshFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refresh = refresh
}

// SetCloseDelay sets the UI transition delay applied before the queue clears
// after its last item.
func (q *Queue) SetCloseDelay(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeDelay = d
}

// Add appends a notification unless an entry with the same
// (transactionID, eventType) already exists. Returns false on a duplicate.
func (q *Queue) Add(data models.NotificationData) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := data.DedupKey()
	for i := range q.items {
		if q.items[i].DedupKey() == key {
			metrics.Get().DuplicatesDropped.Inc()
			logger.Log.Debug("Dropped duplicate notification",
				logger.WithTransactionID(data.Record.TransactionID),
				zap.String("event", string(data.Record.EventType)),
			)
			return false
		}
	}

	q.items = append(q.items, data)
	q.visible = true
	metrics.Get().QueueDepth.Set(float64(len(q.items)))
	return true
}

// Replace swaps the whole working set in from a store load, preserving the
// bell read overlay for ids that survive.
func (q *Queue) Replace(items []models.NotificationData) {
	q.mu.Lock()
	defer q.mu.Unlock()

	surviving := make(map[string]bool, len(items))
	deduped := items[:0]
	seen := make(map[string]bool, len(items))
	for i := range items {
		key := items[i].DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, items[i])
		surviving[items[i].Record.ID] = true
	}

	for id := range q.read {
		if !surviving[id] {
			delete(q.read, id)
		}
	}

	q.items = deduped
	if q.current >= len(q.items) {
		q.current = 0
	}
	if len(q.items) == 0 {
		q.visible = false
	} else {
		q.visible = true
	}
	metrics.Get().QueueDepth.Set(float64(len(q.items)))
}

// Items returns a copy of the working set.
func (q *Queue) Items() []models.NotificationData {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.NotificationData, len(q.items))
	copy(out, q.items)
	return out
}

// Current returns the item under the modal pointer, or nil when the queue is
// empty.
func (q *Queue) Current() *models.NotificationData {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current < 0 || q.current >= len(q.items) {
		return nil
	}
	item := q.items[q.current]
	return &item
}

// CurrentIndex returns the modal pointer.
func (q *Queue) CurrentIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// IsVisible reports whether the modal is showing.
func (q *Queue) IsVisible() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visible
}

// UnhandledCount returns the working-set size.
func (q *Queue) UnhandledCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// NavigateNext moves the pointer forward within bounds. No wraparound.
func (q *Queue) NavigateNext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current < len(q.items)-1 {
		q.current++
	}
}

// NavigatePrevious moves the pointer backward within bounds. No wraparound.
func (q *Queue) NavigatePrevious() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current > 0 {
		q.current--
	}
}

// MarkCurrentHandled delegates to the store for the current item, removes it
// from the queue and bell on verified success, and advances to the next entry
// by index order. A verification failure leaves the item in place.
func (q *Queue) MarkCurrentHandled(ctx context.Context) error {
	q.mu.Lock()
	if q.current < 0 || q.current >= len(q.items) {
		q.mu.Unlock()
		return nil
	}
	id := q.items[q.current].Record.ID
	q.mu.Unlock()

	// Store call happens outside the lock: it hits the network.
	if err := q.store.MarkHandled(ctx, id, q.sess); err != nil {
		logger.Log.Error("Failed to mark notification handled",
			logger.WithNotificationID(id), zap.Error(err))
		return err
	}

	metrics.Get().NotificationsHandled.Inc()
	q.removeAndAdvance(id, true)
	return nil
}

// DismissCurrent delegates dismissal for the current item. On success the item
// is removed and the pointer advances forward first, then backward, then the
// modal closes. On failure the item stays visible and the error propagates so
// the caller can offer a retry.
func (q *Queue) DismissCurrent(ctx context.Context) error {
	q.mu.Lock()
	if q.current < 0 || q.current >= len(q.items) {
		q.mu.Unlock()
		return nil
	}
	id := q.items[q.current].Record.ID
	q.mu.Unlock()

	if err := q.store.Dismiss(ctx, id, q.sess); err != nil {
		logger.Log.Error("Failed to dismiss notification",
			logger.WithNotificationID(id), zap.Error(err))
		return err
	}

	metrics.Get().NotificationsDismissed.Inc()
	q.removeAndAdvance(id, false)
	return nil
}

// RemoveByID retracts a notification that another session handled or
// dismissed. Returns true if an entry was removed.
func (q *Queue) RemoveByID(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(id)
}

// Clear empties the queue and bell overlay and closes the modal.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.current = 0
	q.visible = false
	q.read = make(map[string]bool)
	metrics.Get().QueueDepth.Set(0)
}

// removeAndAdvance removes id and repositions the pointer. forwardOnly
// selects the next-by-index semantics of handling; dismissal tries forward,
// then backward, then closes.
func (q *Queue) removeAndAdvance(id string, forwardOnly bool) {
	q.mu.Lock()

	if !q.removeLocked(id) {
		q.mu.Unlock()
		return
	}

	if len(q.items) == 0 {
		delay := q.closeDelay
		q.mu.Unlock()
		if delay > 0 {
			time.AfterFunc(delay, q.Clear)
		} else {
			q.Clear()
		}
		return
	}

	// removeLocked already clamped the pointer to the next item by index;
	// nothing further to do for either advance mode.
	_ = forwardOnly
	q.mu.Unlock()
}

// removeLocked removes id from items and the read overlay, clamping the
// pointer. Caller holds the mutex.
func (q *Queue) removeLocked(id string) bool {
	idx := -1
	for i := range q.items {
		if q.items[i].Record.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	q.items = append(q.items[:idx], q.items[idx+1:]...)
	delete(q.read, id)

	if idx < q.current {
		q.current--
	}
	if q.current >= len(q.items) {
		q.current = len(q.items) - 1
	}
	if q.current < 0 {
		q.current = 0
	}
	if len(q.items) == 0 {
		q.visible = false
	}
	metrics.Get().QueueDepth.Set(float64(len(q.items)))
	return true
}
