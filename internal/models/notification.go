package models

import (
	"time"

	"gorm.io/gorm"
)

// EventType classifies the row change a notification was raised for.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Valid reports whether the event type is one we recognize.
func (e EventType) Valid() bool {
	switch e {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}

// PriorityLevel orders notifications for the operator.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// HighValueThreshold is the transaction total (KES) above which any
// notification is escalated to high priority.
const HighValueThreshold = 50000.0

// Expiry windows by event type. Deletes are short-lived because there is
// nothing left to pay out against.
const (
	InsertUpdateExpiry = 24 * time.Hour
	DeleteExpiry       = 1 * time.Hour
)

// NotificationRecord is the durable pending-notification row. It is created
// when a transaction row changes and mutated exactly once afterwards: either
// to attach handling metadata or to attach dismissal metadata.
type NotificationRecord struct {
	ID               string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TransactionID    string    `gorm:"not null;index:idx_notification_states_tx" json:"transaction_id"`
	TransactionTable string    `gorm:"not null;index:idx_notification_states_tx" json:"transaction_table"`
	EventType        EventType `gorm:"not null" json:"event_type"`

	// Serialized transaction snapshot plus event metadata, carried opaquely.
	NotificationData []byte `gorm:"type:jsonb" json:"notification_data"`

	IsHandled   bool `gorm:"default:false;index:idx_notification_states_pending" json:"is_handled"`
	IsDismissed bool `gorm:"default:false;index:idx_notification_states_pending" json:"is_dismissed"`

	PriorityLevel  PriorityLevel `gorm:"default:medium" json:"priority_level"`
	RequiresAction bool          `gorm:"default:true" json:"requires_action"`

	// Attribution, set only on handling or dismissal.
	HandledAt      *time.Time `json:"handled_at,omitempty"`
	HandledBy      *string    `json:"handled_by,omitempty"`
	HandledSession *string    `json:"handled_session,omitempty"`

	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName keeps the relation name the rest of the platform expects.
func (NotificationRecord) TableName() string {
	return "notification_states"
}

// ExpiryFor returns the retention window for an event type.
func ExpiryFor(event EventType) time.Duration {
	if event == EventDelete {
		return DeleteExpiry
	}
	return InsertUpdateExpiry
}

// PriorityFor derives the priority level from the event type and the
// transaction total. New inserts and high totals escalate.
func PriorityFor(event EventType, total float64) PriorityLevel {
	if event == EventInsert || total >= HighValueThreshold {
		return PriorityHigh
	}
	if event == EventUpdate {
		return PriorityMedium
	}
	return PriorityLow
}

// NotificationData is the in-memory projection the queue and bell work with.
// Photos are attached best-effort after load; a failed fetch leaves
// PhotosFetched false so a manual retry remains possible.
type NotificationData struct {
	Record NotificationRecord `json:"record"`

	Transaction *Transaction `json:"transaction,omitempty"`

	Photos          []TransactionPhoto `json:"photos"`
	PhotosFetched   bool               `json:"photos_fetched"`
	PhotoRetryCount int                `json:"photo_retry_count"`
	LastPhotoFetch  time.Time          `json:"last_photo_fetch"`
}

// DedupKey identifies a logical event: two notifications for the same
// transaction and event type are the same notification.
func (n *NotificationData) DedupKey() string {
	return n.Record.TransactionID + "|" + string(n.Record.EventType)
}

// BellNotification is the read-model for the header bell dropdown. IsRead is
// local-only state and is never persisted.
type BellNotification struct {
	ID            string        `json:"id"`
	TransactionID string        `json:"transaction_id"`
	Summary       string        `json:"summary"`
	Timestamp     time.Time     `json:"timestamp"`
	IsRead        bool          `json:"is_read"`
	Priority      PriorityLevel `json:"priority"`
}
