// Package realtime subscribes to the backing store's change feed and turns
// validated row changes into queue notifications, including the cross-session
// reconciliation that lets exactly one operator handle each notification.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/meruscrap/pimapos/internal/photos"
	"github.com/meruscrap/pimapos/internal/queue"
	"github.com/meruscrap/pimapos/internal/store"
	"go.uber.org/zap"
)

// PhotoDelay gives the upload pipeline a head start before the first photo
// fetch for a freshly inserted purchase. Latency trade-off, tunable.
const PhotoDelay = 3 * time.Second

// Feed is a change-data-capture subscription source. Subscribe returns a
// channel of raw events plus a cancel func that must release the
// subscription.
type Feed interface {
	Subscribe(channel string) (<-chan RawEvent, func(), error)
}

// Bridge fans feed events into the queue and store.
type Bridge struct {
	feed    Feed
	queue   *queue.Queue
	store   *store.Store
	fetcher *photos.Fetcher

	ownSessionID string
	photoDelay   time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	unsubs     []func()
	subscribed bool
}

// NewBridge creates a stopped bridge. fetcher may be nil to skip photo
// attachment.
func NewBridge(feed Feed, q *queue.Queue, st *store.Store, fetcher *photos.Fetcher, ownSessionID string) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		feed:         feed,
		queue:        q,
		store:        st,
		fetcher:      fetcher,
		ownSessionID: ownSessionID,
		photoDelay:   PhotoDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetPhotoDelay overrides the purchase-insert photo delay. Test use only.
func (b *Bridge) SetPhotoDelay(d time.Duration) {
	b.photoDelay = d
}

// Start opens all four channel subscriptions.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribed {
		return nil
	}

	for _, channel := range Channels {
		events, unsub, err := b.feed.Subscribe(channel)
		if err != nil {
			for _, u := range b.unsubs {
				u()
			}
			b.unsubs = nil
			return err
		}
		b.unsubs = append(b.unsubs, unsub)

		b.wg.Add(1)
		go b.consume(channel, events)
	}

	b.subscribed = true
	logger.Log.Info("Realtime bridge subscribed", zap.Int("channels", len(Channels)))
	return nil
}

// Stop unsubscribes every channel and waits for consumers to drain.
func (b *Bridge) Stop() {
	b.cancel()
	b.mu.Lock()
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.subscribed = false
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bridge) consume(channel string, events <-chan RawEvent) {
	defer b.wg.Done()
	for {
		select {
		case raw, ok := <-events:
			if !ok {
				return
			}
			b.dispatch(raw)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Bridge) dispatch(raw RawEvent) {
	event, rejection := Validate(raw)
	if rejection != nil {
		metrics.Get().InvalidPayloadsDropped.WithLabelValues(trimReason(rejection.Reason)).Inc()
		logger.Log.Warn("Dropped invalid realtime payload",
			logger.WithChannel(raw.Channel),
			zap.String("reason", rejection.Reason),
		)
		return
	}

	switch event.Channel {
	case ChannelPurchases:
		b.handlePurchase(event)
	case ChannelSales:
		b.handleSale(event)
	case ChannelPhotos:
		b.handlePhoto(event)
	case ChannelNotifications:
		b.handleNotificationUpdate(event)
	}
}

// handlePurchase persists and enqueues a notification for a purchase change.
// The entry is queued immediately so the dedup check sees it; for inserts the
// photo fetch waits PhotoDelay and merges its result into the live entry.
func (b *Bridge) handlePurchase(event *ChangeEvent) {
	tx := &models.Transaction{Table: models.TablePurchases, Purchase: event.Purchase}
	data, ok := b.persist(tx, event.Type)
	if !ok {
		return
	}

	if !b.queue.Add(*data) {
		return
	}
	metrics.Get().NotificationsReceived.WithLabelValues(ChannelPurchases).Inc()

	if event.Type == models.EventInsert && b.fetcher != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			select {
			case <-time.After(b.photoDelay):
			case <-b.ctx.Done():
				return
			}
			res := b.fetcher.Fetch(b.ctx, tx.ID())
			b.queue.AttachPhotos(tx.ID(), res.Photos, res.Fetched)
		}()
	}
}

func (b *Bridge) handleSale(event *ChangeEvent) {
	tx := &models.Transaction{Table: models.TableSales, Sale: event.Sale}
	data, ok := b.persist(tx, event.Type)
	if !ok {
		return
	}
	if b.queue.Add(*data) {
		metrics.Get().NotificationsReceived.WithLabelValues(ChannelSales).Inc()
	}
}

// handlePhoto attaches a late-arriving upload to the matching queue entry.
func (b *Bridge) handlePhoto(event *ChangeEvent) {
	if event.Type != models.EventInsert {
		return
	}
	b.queue.AttachPhotos(event.Photo.TransactionID, []models.TransactionPhoto{*event.Photo}, true)
}

// handleNotificationUpdate mirrors handled/dismissed state written by another
// session. Whichever session's write lands first in the backing store wins;
// this is where the losers retract their copies.
func (b *Bridge) handleNotificationUpdate(event *ChangeEvent) {
	if event.Type != models.EventUpdate {
		return
	}
	rec := event.Notification
	if !rec.IsHandled && !rec.IsDismissed {
		return
	}
	if rec.HandledSession != nil && *rec.HandledSession == b.ownSessionID {
		// Our own write echoing back; the local queue already reflects it.
		return
	}

	b.store.MarkExcluded(b.ctx, rec.ID, rec.IsHandled)
	if b.queue.RemoveByID(rec.ID) {
		metrics.Get().CrossSessionRetracted.Inc()
		logger.Log.Info("Retracted notification handled elsewhere",
			logger.WithNotificationID(rec.ID),
			zap.Bool("handled", rec.IsHandled),
		)
	}
}

// persist dedups against the queue, then writes the notification record
// before it is exposed anywhere, so other sessions see it via the feed first.
func (b *Bridge) persist(tx *models.Transaction, event models.EventType) (*models.NotificationData, bool) {
	if b.isDuplicate(tx.ID(), event) {
		metrics.Get().DuplicatesDropped.Inc()
		return nil, false
	}

	draft := &models.NotificationRecord{
		TransactionID:    tx.ID(),
		TransactionTable: tx.Table,
		EventType:        event,
		NotificationData: store.EncodeTransaction(tx),
		PriorityLevel:    models.PriorityFor(event, tx.Total()),
		RequiresAction:   true,
		CreatedAt:        time.Now().UTC(),
	}

	if _, err := b.store.Save(b.ctx, draft); err != nil {
		logger.Log.Error("Failed to persist notification",
			logger.WithTransactionID(tx.ID()), zap.Error(err))
		return nil, false
	}

	return &models.NotificationData{
		Record:      *draft,
		Transaction: tx,
		Photos:      []models.TransactionPhoto{},
	}, true
}

func (b *Bridge) isDuplicate(transactionID string, event models.EventType) bool {
	key := transactionID + "|" + string(event)
	for _, item := range b.queue.Items() {
		if item.DedupKey() == key {
			return true
		}
	}
	return false
}

// trimReason collapses a free-form rejection into a bounded metric label.
func trimReason(reason string) string {
	for i := range reason {
		if reason[i] == ':' || reason[i] == '%' {
			return reason[:i]
		}
	}
	if len(reason) > 40 {
		return reason[:40]
	}
	return reason
}
