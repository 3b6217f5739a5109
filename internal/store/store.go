// Package store owns the durable pending-notification state machine: load,
// save, handle, dismiss. Handled is terminal and permanent; dismissed is
// terminal for the queue but remains visible to recovery.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meruscrap/pimapos/internal/errors"
	"github.com/meruscrap/pimapos/internal/exclusion"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/meruscrap/pimapos/internal/photos"
	"go.uber.org/zap"
)

const (
	// CleanupInterval is how often exclusion-set entries are pruned.
	CleanupInterval = 30 * time.Minute

	// HandledRetention / DismissedRetention bound exclusion-set growth. The
	// backing store remains the source of truth beyond these windows.
	HandledRetention   = 2 * time.Hour
	DismissedRetention = 24 * time.Hour

	// RecoveryWindow bounds how far back emergency recovery looks.
	RecoveryWindow = 48 * time.Hour
)

// Session supplies attribution for handle/dismiss writes.
type Session interface {
	SessionID() string
	UserID() string
}

// Store mediates all reads and writes of notification records.
type Store struct {
	rows    Rows
	fetcher *photos.Fetcher

	// handled entries are permanent for the session: a handled id must never
	// re-enter the queue, even if a stale realtime event replays it.
	handled   exclusion.Store
	dismissed exclusion.Store

	cancelCleanup context.CancelFunc
}

// New creates a Store. fetcher may be nil when photo attachment is not wanted
// (e.g. the ops CLI).
func New(rows Rows, fetcher *photos.Fetcher, handled, dismissed exclusion.Store) *Store {
	return &Store{
		rows:      rows,
		fetcher:   fetcher,
		handled:   handled,
		dismissed: dismissed,
	}
}

// Load queries pending records and applies three layered filters before
// returning: the query predicate itself, the dismissed exclusion set, and the
// handled exclusion set. A record that arrives with is_handled=true despite
// the predicate is dropped and logged as an integrity warning, not treated as
// fatal.
func (s *Store) Load(ctx context.Context) ([]models.NotificationData, error) {
	recs, err := s.rows.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.NotificationData, 0, len(recs))
	for i := range recs {
		rec := recs[i]

		if rec.IsHandled {
			logger.Log.Error("Integrity warning: handled record returned by pending query",
				logger.WithNotificationID(rec.ID))
			continue
		}
		if s.dismissed.Has(ctx, rec.ID) {
			continue
		}
		if s.handled.Has(ctx, rec.ID) {
			continue
		}

		data := models.NotificationData{
			Record: rec,
			Photos: []models.TransactionPhoto{},
		}
		if tx := decodeTransaction(rec.NotificationData); tx != nil {
			data.Transaction = tx
			if tx.HasPhotos() && s.fetcher != nil {
				res := s.fetcher.Fetch(ctx, rec.TransactionID)
				data.Photos = res.Photos
				data.PhotosFetched = res.Fetched
				data.PhotoRetryCount = res.Attempts - 1
				data.LastPhotoFetch = time.Now().UTC()
			}
		}

		out = append(out, data)
	}
	return out, nil
}

// Save persists a draft record before it is exposed in any queue, so other
// sessions observe it through the change feed rather than only in this
// process's memory. The generated id is filled into draft.
func (s *Store) Save(ctx context.Context, draft *models.NotificationRecord) (string, error) {
	now := time.Now().UTC()
	draft.ExpiresAt = now.Add(models.ExpiryFor(draft.EventType))
	if draft.PriorityLevel == "" {
		draft.PriorityLevel = models.PriorityMedium
	}
	if err := s.rows.Insert(ctx, draft); err != nil {
		return "", err
	}
	return draft.ID, nil
}

// MarkHandled sets the terminal handled state with attribution, then performs
// a read-back verification. If verification fails the error is recoverable
// and the caller must keep the notification visible: a duplicate prompt beats
// a silently lost one.
func (s *Store) MarkHandled(ctx context.Context, id string, sess Session) error {
	now := time.Now().UTC()
	userID := sess.UserID()
	sessionID := sess.SessionID()

	err := s.rows.UpdateState(ctx, id, map[string]interface{}{
		"is_handled":      true,
		"is_dismissed":    false,
		"handled_at":      now,
		"handled_by":      userID,
		"handled_session": sessionID,
	})
	if err != nil {
		return err
	}

	rec, err := s.rows.Get(ctx, id)
	if err != nil {
		return errors.Verification("mark handled").WithDetails(err.Error())
	}
	if !rec.IsHandled {
		logger.Log.Error("Handled write did not persist",
			logger.WithNotificationID(id), logger.WithSessionID(sessionID))
		return errors.Verification("mark handled")
	}

	if err := s.handled.Add(ctx, id); err != nil {
		logger.Log.Warn("Failed to record handled exclusion", zap.Error(err))
	}
	if err := s.dismissed.Remove(ctx, id); err != nil {
		logger.Log.Warn("Failed to clear dismissed exclusion", zap.Error(err))
	}

	logger.Log.Info("Notification handled",
		logger.WithNotificationID(id),
		logger.WithUserID(userID),
		logger.WithSessionID(sessionID),
	)
	return nil
}

// Dismiss sets the dismissed state with attribution. Dismissal is not a
// weaker handling: the record stays out of the queue but remains reachable by
// recovery, which queries "not handled".
func (s *Store) Dismiss(ctx context.Context, id string, sess Session) error {
	now := time.Now().UTC()

	err := s.rows.UpdateState(ctx, id, map[string]interface{}{
		"is_dismissed":    true,
		"is_handled":      false,
		"handled_at":      now,
		"handled_by":      sess.UserID(),
		"handled_session": sess.SessionID(),
	})
	if err != nil {
		return err
	}

	if err := s.dismissed.Add(ctx, id); err != nil {
		logger.Log.Warn("Failed to record dismissed exclusion", zap.Error(err))
	}

	logger.Log.Info("Notification dismissed",
		logger.WithNotificationID(id),
		logger.WithSessionID(sess.SessionID()),
	)
	return nil
}

// GetPending returns not-handled records within the recovery window for
// operator inspection. Handled records never appear here, so recovery cannot
// resurrect them.
func (s *Store) GetPending(ctx context.Context) ([]models.NotificationRecord, error) {
	since := time.Now().UTC().Add(-RecoveryWindow)
	return s.rows.ListUnhandledSince(ctx, since)
}

// IsExcluded reports whether the id is locally excluded, either handled or
// dismissed. The realtime bridge consults this before enqueueing.
func (s *Store) IsExcluded(ctx context.Context, id string) bool {
	return s.handled.Has(ctx, id) || s.dismissed.Has(ctx, id)
}

// MarkExcluded records a handled/dismissed state observed from another
// session's update event.
func (s *Store) MarkExcluded(ctx context.Context, id string, handled bool) {
	var err error
	if handled {
		err = s.handled.Add(ctx, id)
	} else {
		err = s.dismissed.Add(ctx, id)
	}
	if err != nil {
		logger.Log.Warn("Failed to mirror cross-session exclusion",
			logger.WithNotificationID(id), zap.Error(err))
	}
}

// StartCleanup begins the periodic exclusion-set sweep.
func (s *Store) StartCleanup() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelCleanup = cancel

	go func() {
		ticker := time.NewTicker(CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.cleanup(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopCleanup halts the sweep.
func (s *Store) StopCleanup() {
	if s.cancelCleanup != nil {
		s.cancelCleanup()
	}
}

func (s *Store) cleanup(ctx context.Context) {
	prunedHandled := s.handled.Prune(ctx, HandledRetention)
	prunedDismissed := s.dismissed.Prune(ctx, DismissedRetention)
	if prunedHandled+prunedDismissed > 0 {
		logger.Log.Debug("Pruned exclusion sets",
			zap.Int("handled", prunedHandled),
			zap.Int("dismissed", prunedDismissed),
		)
	}
}

func decodeTransaction(raw []byte) *models.Transaction {
	if len(raw) == 0 {
		return nil
	}
	var tx models.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		logger.Log.Warn("Undecodable notification payload", zap.Error(err))
		return nil
	}
	return &tx
}

// EncodeTransaction serializes a transaction snapshot for storage in a
// notification record.
func EncodeTransaction(tx *models.Transaction) []byte {
	raw, err := json.Marshal(tx)
	if err != nil {
		logger.Log.Warn("Failed to encode transaction snapshot", zap.Error(err))
		return nil
	}
	return raw
}
