package queue

import (
	"context"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
)

// Bell returns the dropdown read-model, newest first, with the local read
// overlay applied.
func (q *Queue) Bell() []models.BellNotification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.BellNotification, 0, len(q.items))
	for i := len(q.items) - 1; i >= 0; i-- {
		item := q.items[i]
		summary := "Transaction activity"
		if item.Transaction != nil {
			summary = item.Transaction.Summary(item.Record.EventType)
		}
		out = append(out, models.BellNotification{
			ID:            item.Record.ID,
			TransactionID: item.Record.TransactionID,
			Summary:       summary,
			Timestamp:     item.Record.CreatedAt,
			IsRead:        q.read[item.Record.ID],
			Priority:      item.Record.PriorityLevel,
		})
	}
	return out
}

// UnreadCount returns how many bell entries have not been read locally.
func (q *Queue) UnreadCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for i := range q.items {
		if !q.read[q.items[i].Record.ID] {
			count++
		}
	}
	return count
}

// MarkRead stamps one bell entry read. Local-only.
func (q *Queue) MarkRead(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].Record.ID == id {
			q.read[id] = true
			return
		}
	}
}

// MarkAllRead stamps every currently-loaded entry.
func (q *Queue) MarkAllRead() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		q.read[q.items[i].Record.ID] = true
	}
}

// OpenFromBell points the modal at the given notification. When the id is
// missing locally (another session may have cleared it) the queue refreshes
// once and retries before giving up silently.
func (q *Queue) OpenFromBell(ctx context.Context, id string) bool {
	if q.openLocked(id) {
		return true
	}

	q.mu.Lock()
	refresh := q.refresh
	q.mu.Unlock()
	if refresh == nil {
		return false
	}

	if err := refresh(ctx); err != nil {
		logger.Log.Warn("Bell-triggered refresh failed", logger.WithNotificationID(id))
		return false
	}
	return q.openLocked(id)
}

func (q *Queue) openLocked(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].Record.ID == id {
			q.current = i
			q.visible = true
			q.read[id] = true
			return true
		}
	}
	return false
}
