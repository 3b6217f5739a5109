// Package session registers this operator process with the backing store so
// notification handling can be attributed to a specific session.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"github.com/meruscrap/pimapos/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// HeartbeatInterval is how often the session row is touched.
	HeartbeatInterval = 30 * time.Second

	// StaleAfter is how long a session may miss heartbeats before the sweep
	// marks it inactive.
	StaleAfter = 2 * time.Minute
)

// Registry owns one UserSession row for the lifetime of the process.
type Registry struct {
	db     *gorm.DB
	ctx    context.Context
	cancel context.CancelFunc

	sessionID  string
	userID     string
	deviceInfo string
}

// NewRegistry generates a fresh session id. The row is not written until
// Start.
func NewRegistry(db *gorm.DB, userID, deviceInfo string) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		db:         db,
		ctx:        ctx,
		cancel:     cancel,
		sessionID:  uuid.New().String(),
		userID:     userID,
		deviceInfo: deviceInfo,
	}
}

// SessionID returns the process-lifetime session identifier.
func (r *Registry) SessionID() string {
	return r.sessionID
}

// UserID returns the owning user identifier.
func (r *Registry) UserID() string {
	return r.userID
}

// Start inserts the session row and begins the heartbeat loop.
func (r *Registry) Start() error {
	now := time.Now().UTC()
	row := &models.UserSession{
		ID:         r.sessionID,
		UserID:     r.userID,
		DeviceInfo: r.deviceInfo,
		IsActive:   true,
		LastSeenAt: now,
	}
	if err := r.db.Create(row).Error; err != nil {
		return err
	}

	logger.Log.Info("Session registered",
		logger.WithSessionID(r.sessionID),
		logger.WithUserID(r.userID),
	)

	go r.run()
	return nil
}

// Stop marks the session inactive and halts the heartbeat.
func (r *Registry) Stop() {
	r.cancel()

	err := r.db.Model(&models.UserSession{}).
		Where("id = ?", r.sessionID).
		Updates(map[string]interface{}{
			"is_active":    false,
			"last_seen_at": time.Now().UTC(),
		}).Error
	if err != nil {
		logger.Log.Warn("Failed to mark session inactive",
			logger.WithSessionID(r.sessionID), zap.Error(err))
	}
}

func (r *Registry) run() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.heartbeat()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Registry) heartbeat() {
	err := r.db.Model(&models.UserSession{}).
		Where("id = ?", r.sessionID).
		Update("last_seen_at", time.Now().UTC()).Error
	if err != nil {
		logger.Log.Warn("Session heartbeat failed",
			logger.WithSessionID(r.sessionID), zap.Error(err))
		return
	}

	var active int64
	if err := r.db.Model(&models.UserSession{}).
		Where("is_active = ?", true).
		Count(&active).Error; err == nil {
		metrics.Get().ActiveSessions.Set(float64(active))
	}
}

// SweepStale marks sessions inactive whose last heartbeat is older than
// StaleAfter. Safe to run from any process; the query is idempotent.
func SweepStale(db *gorm.DB) (int64, error) {
	cutoff := time.Now().UTC().Add(-StaleAfter)
	res := db.Model(&models.UserSession{}).
		Where("is_active = ? AND last_seen_at < ?", true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// ListActive returns the currently active sessions, most recent first.
func ListActive(db *gorm.DB) ([]models.UserSession, error) {
	var sessions []models.UserSession
	err := db.Where("is_active = ?", true).
		Order("last_seen_at DESC").
		Find(&sessions).Error
	return sessions, err
}
