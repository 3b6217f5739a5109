package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetNavigationState reports whether the operator may leave the screen
// GET /api/v1/navigation
func (h *Handlers) GetNavigationState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"can_leave":           h.guard.CanLeave(),
		"pending":             h.guard.PendingCount(),
		"blocked_destination": h.guard.BlockedDestination(),
	})
}

// AttemptNavigation asks the guard to approve a screen change or logout
// POST /api/v1/navigation/attempt
func (h *Handlers) AttemptNavigation(c *gin.Context) {
	var req struct {
		Destination string `json:"destination" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if !h.guard.AttemptNavigate(req.Destination) {
		c.JSON(http.StatusConflict, gin.H{
			"allowed": false,
			"pending": h.guard.PendingCount(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true})
}

// GetPendingRecovery is the emergency recovery view: every not-handled record
// within the recovery window, straight from the backing store
// GET /api/v1/recovery/pending
func (h *Handlers) GetPendingRecovery(c *gin.Context) {
	records, err := h.guard.GetPendingNotifications(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_load_pending", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending": records,
		"count":   len(records),
	})
}
