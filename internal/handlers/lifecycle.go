package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meruscrap/pimapos/internal/lifecycle"
)

// PostLifecycleEvent feeds a shell-observed event into the resume machine
// POST /api/v1/lifecycle/events
func (h *Handlers) PostLifecycleEvent(c *gin.Context) {
	var req struct {
		Type  string `json:"type" binding:"required"`
		Value bool   `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	switch req.Type {
	case "visibility":
		h.lifecycle.Send(lifecycle.VisibilityChanged{Visible: req.Value})
	case "focus":
		h.lifecycle.Send(lifecycle.FocusChanged{Focused: req.Value})
	case "online":
		h.lifecycle.Send(lifecycle.NetworkOnline{})
	case "auth_loading":
		h.lifecycle.Send(lifecycle.AuthLoadingChanged{Loading: req.Value})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_event_type"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// GetLifecycleState reports the resume machine state
// GET /api/v1/lifecycle
func (h *Handlers) GetLifecycleState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":            h.lifecycle.State(),
		"loading":          h.lifecycle.Loading(),
		"error":            h.lifecycle.ErrorMessage(),
		"blocked_by_auth":  h.lifecycle.BlockedByAuthCount(),
		"watchdog_firings": h.lifecycle.WatchdogFirings(),
	})
}

// ForceRecovery clears error state and caches and re-runs a resume
// POST /api/v1/lifecycle/recover
func (h *Handlers) ForceRecovery(c *gin.Context) {
	h.lifecycle.ForceRecovery()
	c.JSON(http.StatusAccepted, gin.H{"status": "recovery_started"})
}
