package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meruscrap/pimapos/internal/models"
)

// GetSession reports the mirrored auth session: role, permissions, and the
// realtime session identity used for cross-session reconciliation
// GET /api/v1/session
func (h *Handlers) GetSession(c *gin.Context) {
	role := h.perms.Role()
	perms := []models.Permission{}
	for _, p := range []models.Permission{
		models.PermViewDashboard,
		models.PermRecordTransactions,
		models.PermHandlePayouts,
		models.PermManageSuppliers,
		models.PermViewReports,
		models.PermManageUsers,
		models.PermRunRecovery,
	} {
		if h.perms.Has(p) {
			perms = append(perms, p)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     h.perms.UserID(),
		"role":        role,
		"permissions": perms,
		"session_id":  h.registry.SessionID(),
	})
}

// RefreshSession reloads permissions on demand, subject to the refresh floor
// POST /api/v1/session/refresh
func (h *Handlers) RefreshSession(c *gin.Context) {
	h.perms.RefreshPermissions()
	c.JSON(http.StatusOK, gin.H{
		"role":    h.perms.Role(),
		"reloads": h.perms.ReloadCount(),
	})
}
