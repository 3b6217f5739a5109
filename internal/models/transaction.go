package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Transaction relation names, as owned by the POS screens. This service only
// ever reads these tables.
const (
	TablePurchases = "purchase_transactions"
	TableSales     = "sale_transactions"
	TablePhotos    = "transaction_photos"
)

// PaymentStatus mirrors the POS payment state machine.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PurchaseTransaction is a scrap purchase from a supplier or walk-in.
// Externally owned; read-only to this service.
type PurchaseTransaction struct {
	ID            string        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SupplierID    *string       `gorm:"index" json:"supplier_id,omitempty"`
	SupplierName  string        `json:"supplier_name"`
	IsWalkIn      bool          `gorm:"default:false" json:"is_walkin"`
	MaterialType  string        `gorm:"not null" json:"material_type"`
	WeightKG      float64       `json:"weight_kg"`
	TotalAmount   float64       `gorm:"not null" json:"total_amount"`
	PaymentStatus PaymentStatus `gorm:"default:pending" json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (PurchaseTransaction) TableName() string { return TablePurchases }

// SaleTransaction is an outbound sale to a buyer. Sales never carry photos.
type SaleTransaction struct {
	ID            string        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	BuyerName     string        `json:"buyer_name"`
	MaterialType  string        `gorm:"not null" json:"material_type"`
	WeightKG      float64       `json:"weight_kg"`
	TotalAmount   float64       `gorm:"not null" json:"total_amount"`
	PaymentStatus PaymentStatus `gorm:"default:pending" json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (SaleTransaction) TableName() string { return TableSales }

// TransactionPhoto is an uploaded photo attachment for a purchase. The file
// itself lives in external object storage; we only carry the row.
type TransactionPhoto struct {
	ID            string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TransactionID string         `gorm:"not null;index" json:"transaction_id"`
	StoragePath   string         `gorm:"not null" json:"storage_path"`
	SortOrder     int            `gorm:"default:0" json:"sort_order"`
	IsPrimary     bool           `gorm:"default:false" json:"is_primary"`
	CreatedAt     time.Time      `json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (TransactionPhoto) TableName() string { return TablePhotos }

// Transaction is the tagged union carried inside a notification. Exactly one
// of Purchase or Sale is set, indicated by Table.
type Transaction struct {
	Table    string               `json:"table"`
	Purchase *PurchaseTransaction `json:"purchase,omitempty"`
	Sale     *SaleTransaction     `json:"sale,omitempty"`
}

// ID returns the identifier of whichever side of the union is set.
func (t *Transaction) ID() string {
	switch {
	case t.Purchase != nil:
		return t.Purchase.ID
	case t.Sale != nil:
		return t.Sale.ID
	}
	return ""
}

// Total returns the monetary total of the transaction.
func (t *Transaction) Total() float64 {
	switch {
	case t.Purchase != nil:
		return t.Purchase.TotalAmount
	case t.Sale != nil:
		return t.Sale.TotalAmount
	}
	return 0
}

// HasPhotos reports whether this transaction type carries photo attachments.
// Only purchases do.
func (t *Transaction) HasPhotos() bool {
	return t.Purchase != nil
}

// Summary renders the human one-liner shown in the bell dropdown.
func (t *Transaction) Summary(event EventType) string {
	verb := "recorded"
	switch event {
	case EventUpdate:
		verb = "updated"
	case EventDelete:
		verb = "deleted"
	}

	switch {
	case t.Purchase != nil:
		who := t.Purchase.SupplierName
		if t.Purchase.IsWalkIn || who == "" {
			who = "walk-in supplier"
		}
		return fmt.Sprintf("Purchase %s: %s, %.1fkg %s, KES %.2f",
			verb, who, t.Purchase.WeightKG, t.Purchase.MaterialType, t.Purchase.TotalAmount)
	case t.Sale != nil:
		return fmt.Sprintf("Sale %s: %s, %.1fkg %s, KES %.2f",
			verb, t.Sale.BuyerName, t.Sale.WeightKG, t.Sale.MaterialType, t.Sale.TotalAmount)
	}
	return "Transaction " + verb
}
