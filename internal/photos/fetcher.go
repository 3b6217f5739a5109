// Package photos fetches photo attachments for purchase transactions,
// tolerating the upload pipeline's eventual-consistency window.
package photos

import (
	"context"
	"time"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"github.com/meruscrap/pimapos/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// MaxRetries bounds the retry budget per fetch.
	MaxRetries = 3

	// Backoff parameters: base * factor^attempt, capped.
	backoffBase   = 1000 * time.Millisecond
	backoffFactor = 1.5
	backoffCap    = 5000 * time.Millisecond

	// FreshWindow: a transaction younger than this with zero photos is
	// treated as "uploads still in flight" and retried.
	FreshWindow = 30 * time.Second
)

// Source reads photo rows and transaction ages from the backing store.
type Source interface {
	PhotosFor(ctx context.Context, transactionID string) ([]models.TransactionPhoto, error)
	TransactionCreatedAt(ctx context.Context, transactionID string) (time.Time, error)
}

// Fetcher retries photo lookups with exponential backoff.
type Fetcher struct {
	source Source

	// sleep is swappable for tests.
	sleep func(context.Context, time.Duration) error
}

// Result carries the outcome of a fetch. Fetched is false only when every
// retry was exhausted without a usable answer, leaving a manual retry open.
type Result struct {
	Photos   []models.TransactionPhoto
	Fetched  bool
	Attempts int
}

// NewFetcher creates a Fetcher over the given source.
func NewFetcher(source Source) *Fetcher {
	return &Fetcher{
		source: source,
		sleep:  sleepCtx,
	}
}

// SetSleepFunc overrides the backoff sleep. Test use only.
func (f *Fetcher) SetSleepFunc(sleep func(context.Context, time.Duration) error) {
	f.sleep = sleep
}

// Fetch retrieves photos for a purchase transaction. It never returns an
// error for exhausted retries: the caller records Fetched=false and keeps the
// notification usable without photos.
func (f *Fetcher) Fetch(ctx context.Context, transactionID string) Result {
	res := Result{Photos: []models.TransactionPhoto{}}

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		res.Attempts = attempt + 1

		photos, err := f.source.PhotosFor(ctx, transactionID)
		if err == nil && len(photos) > 0 {
			res.Photos = photos
			res.Fetched = true
			return res
		}

		if err != nil {
			logger.Log.Warn("Photo fetch failed",
				logger.WithTransactionID(transactionID),
				zap.Int("attempt", attempt), zap.Error(err))
		} else if !f.uploadsLikelyInFlight(ctx, transactionID) {
			// Zero photos for a settled transaction is a real answer.
			res.Fetched = true
			return res
		}

		if attempt == MaxRetries {
			break
		}
		metrics.Get().PhotoFetchRetries.Inc()
		if err := f.sleep(ctx, backoffDelay(attempt)); err != nil {
			return res
		}
	}

	metrics.Get().PhotoFetchExhausted.Inc()
	logger.Log.Warn("Photo fetch exhausted retries",
		logger.WithTransactionID(transactionID),
		zap.Int("attempts", res.Attempts))
	return res
}

// uploadsLikelyInFlight re-queries the transaction's created_at: a very fresh
// transaction with zero photos usually means the upload pipeline has not
// landed yet.
func (f *Fetcher) uploadsLikelyInFlight(ctx context.Context, transactionID string) bool {
	createdAt, err := f.source.TransactionCreatedAt(ctx, transactionID)
	if err != nil {
		return false
	}
	return time.Since(createdAt) < FreshWindow
}

func backoffDelay(attempt int) time.Duration {
	delay := backoffBase
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * backoffFactor)
	}
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GormSource reads photos and transactions through GORM.
type GormSource struct {
	db *gorm.DB
}

// NewGormSource creates a Source over the given database handle.
func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) PhotosFor(ctx context.Context, transactionID string) ([]models.TransactionPhoto, error) {
	var photos []models.TransactionPhoto
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("sort_order ASC").
		Find(&photos).Error
	return photos, err
}

func (s *GormSource) TransactionCreatedAt(ctx context.Context, transactionID string) (time.Time, error) {
	var tx models.PurchaseTransaction
	err := s.db.WithContext(ctx).
		Select("created_at").
		Where("id = ?", transactionID).
		First(&tx).Error
	return tx.CreatedAt, err
}
