package store

import (
	"context"
	"time"

	"github.com/meruscrap/pimapos/internal/models"
	"gorm.io/gorm"
)

// Rows is the row-storage interface the notification store depends on. The
// production implementation is GORM over Postgres; tests use an in-memory
// implementation. All mutations are optimistic: the backing store's write path
// is the single serialization point across operator sessions, so no
// client-side lock is layered on top of it.
type Rows interface {
	// ListPending returns records that are neither handled nor dismissed,
	// oldest first.
	ListPending(ctx context.Context) ([]models.NotificationRecord, error)

	// ListUnhandledSince returns records not yet handled (dismissed included)
	// created after the given time, oldest first. This backs recovery.
	ListUnhandledSince(ctx context.Context, since time.Time) ([]models.NotificationRecord, error)

	// Insert persists a new record, filling in its generated id.
	Insert(ctx context.Context, rec *models.NotificationRecord) error

	// UpdateState applies the given column values to one record.
	UpdateState(ctx context.Context, id string, fields map[string]interface{}) error

	// Get reads one record back by id.
	Get(ctx context.Context, id string) (*models.NotificationRecord, error)
}

// GormRows is the production Rows implementation.
type GormRows struct {
	db *gorm.DB
}

// NewGormRows wraps a database handle.
func NewGormRows(db *gorm.DB) *GormRows {
	return &GormRows{db: db}
}

func (r *GormRows) ListPending(ctx context.Context) ([]models.NotificationRecord, error) {
	var recs []models.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("is_handled = ? AND is_dismissed = ?", false, false).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}

func (r *GormRows) ListUnhandledSince(ctx context.Context, since time.Time) ([]models.NotificationRecord, error) {
	var recs []models.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("is_handled = ? AND created_at > ?", false, since).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}

func (r *GormRows) Insert(ctx context.Context, rec *models.NotificationRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormRows) UpdateState(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *GormRows) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	var rec models.NotificationRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
