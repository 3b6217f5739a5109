package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetNotifications returns the bell dropdown read-model with unread count
// GET /api/v1/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	bell := h.queue.Bell()
	c.JSON(http.StatusOK, gin.H{
		"notifications": bell,
		"unread":        h.queue.UnreadCount(),
		"meta": gin.H{
			"count": len(bell),
		},
	})
}

// GetNotificationCounts returns just the badge counts
// GET /api/v1/notifications/counts
func (h *Handlers) GetNotificationCounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"unread":    h.queue.UnreadCount(),
		"unhandled": h.queue.UnhandledCount(),
	})
}

// MarkNotificationRead marks one bell entry read (local overlay only)
// POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	h.queue.MarkRead(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// MarkNotificationsRead marks every bell entry read
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	h.queue.MarkAllRead()
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "all_notifications_marked_read",
	})
}

// OpenNotification points the modal at a bell entry
// POST /api/v1/notifications/:id/open
func (h *Handlers) OpenNotification(c *gin.Context) {
	id := c.Param("id")
	if !h.queue.OpenFromBell(c.Request.Context(), id) {
		// The notification was cleared elsewhere and a refresh did not bring
		// it back; nothing for the operator to act on.
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"current": h.queue.CurrentIndex(),
	})
}

// GetQueue returns the modal working set and pointer
// GET /api/v1/queue
func (h *Handlers) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items":   h.queue.Items(),
		"current": h.queue.CurrentIndex(),
		"visible": h.queue.IsVisible(),
	})
}

// NavigateNext advances the modal pointer
// POST /api/v1/queue/next
func (h *Handlers) NavigateNext(c *gin.Context) {
	h.queue.NavigateNext()
	c.JSON(http.StatusOK, gin.H{"current": h.queue.CurrentIndex()})
}

// NavigatePrevious moves the modal pointer back
// POST /api/v1/queue/previous
func (h *Handlers) NavigatePrevious(c *gin.Context) {
	h.queue.NavigatePrevious()
	c.JSON(http.StatusOK, gin.H{"current": h.queue.CurrentIndex()})
}

// HandleCurrent marks the current notification handled, with read-back
// verification in the store
// POST /api/v1/queue/handle
func (h *Handlers) HandleCurrent(c *gin.Context) {
	if err := h.queue.MarkCurrentHandled(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "failed_to_mark_handled", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"remaining": h.queue.UnhandledCount(),
	})
}

// DismissCurrent dismisses the current notification
// POST /api/v1/queue/dismiss
func (h *Handlers) DismissCurrent(c *gin.Context) {
	if err := h.queue.DismissCurrent(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "failed_to_dismiss", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"remaining": h.queue.UnhandledCount(),
	})
}

// RetryPhotos re-runs the photo fetch for a queue entry whose photos never
// landed, then merges the result into the live entry
// POST /api/v1/queue/photos/retry
func (h *Handlers) RetryPhotos(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transaction_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if !h.queue.RetryPhotos(req.TransactionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}

	if h.fetcher == nil {
		c.JSON(http.StatusOK, gin.H{"fetched": false, "photos": []interface{}{}})
		return
	}

	res := h.fetcher.Fetch(c.Request.Context(), req.TransactionID)
	h.queue.AttachPhotos(req.TransactionID, res.Photos, res.Fetched)
	c.JSON(http.StatusOK, gin.H{
		"fetched":  res.Fetched,
		"attempts": res.Attempts,
		"photos":   res.Photos,
	})
}
