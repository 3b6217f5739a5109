package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/meruscrap/pimapos/internal/models"
)

// Channel names mirror the backing store's relation names.
const (
	ChannelPurchases     = models.TablePurchases
	ChannelSales         = models.TableSales
	ChannelPhotos        = models.TablePhotos
	ChannelNotifications = "notification_states"
)

// Channels lists every subscription the bridge opens.
var Channels = []string{ChannelPurchases, ChannelSales, ChannelPhotos, ChannelNotifications}

// RawEvent is the change envelope as delivered by the feed. New/Old are the
// untyped row images; validation turns them into typed payloads.
type RawEvent struct {
	Channel string                 `json:"channel"`
	Type    string                 `json:"type"`
	New     map[string]interface{} `json:"new,omitempty"`
	Old     map[string]interface{} `json:"old,omitempty"`
}

// ChangeEvent is a validated, typed change. Exactly one payload pointer is
// non-nil, matching Channel.
type ChangeEvent struct {
	Channel string
	Type    models.EventType

	Purchase     *models.PurchaseTransaction
	Sale         *models.SaleTransaction
	Photo        *models.TransactionPhoto
	Notification *models.NotificationRecord
}

// Rejection explains why a raw event was dropped. Rejected events are logged
// and never propagated into state.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return "rejected realtime payload: " + r.Reason
}

func reject(format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the payload shape and produces a typed event. Every
// malformed input maps to a Rejection; validation never panics on foreign
// shapes.
func Validate(raw RawEvent) (*ChangeEvent, *Rejection) {
	event := models.EventType(raw.Type)
	if !event.Valid() {
		return nil, reject("unknown event type %q", raw.Type)
	}

	// Deletes carry the old image; everything else the new one.
	row := raw.New
	if event == models.EventDelete {
		row = raw.Old
	}
	if row == nil {
		return nil, reject("missing row image for %s on %s", raw.Type, raw.Channel)
	}

	if id, ok := row["id"].(string); !ok || id == "" {
		return nil, reject("missing or non-string id on %s", raw.Channel)
	}

	out := &ChangeEvent{Channel: raw.Channel, Type: event}

	switch raw.Channel {
	case ChannelPurchases:
		var tx models.PurchaseTransaction
		if err := decodeRow(row, &tx); err != nil {
			return nil, reject("bad purchase payload: %v", err)
		}
		if tx.MaterialType == "" {
			return nil, reject("purchase missing material_type")
		}
		out.Purchase = &tx
	case ChannelSales:
		var tx models.SaleTransaction
		if err := decodeRow(row, &tx); err != nil {
			return nil, reject("bad sale payload: %v", err)
		}
		if tx.MaterialType == "" {
			return nil, reject("sale missing material_type")
		}
		out.Sale = &tx
	case ChannelPhotos:
		var photo models.TransactionPhoto
		if err := decodeRow(row, &photo); err != nil {
			return nil, reject("bad photo payload: %v", err)
		}
		if photo.TransactionID == "" {
			return nil, reject("photo missing transaction_id")
		}
		out.Photo = &photo
	case ChannelNotifications:
		var rec models.NotificationRecord
		if err := decodeRow(row, &rec); err != nil {
			return nil, reject("bad notification payload: %v", err)
		}
		out.Notification = &rec
	default:
		return nil, reject("unknown channel %q", raw.Channel)
	}

	return out, nil
}

// decodeRow round-trips the untyped row image through JSON into the typed
// struct, so field types are enforced the same way the wire format is.
func decodeRow(row map[string]interface{}, dest interface{}) error {
	buf, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dest)
}
