package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventInsert.Valid())
	assert.True(t, EventUpdate.Valid())
	assert.True(t, EventDelete.Valid())
	assert.False(t, EventType("TRUNCATE").Valid())
	assert.False(t, EventType("insert").Valid())
}

func TestExpiryFor(t *testing.T) {
	assert.Equal(t, InsertUpdateExpiry, ExpiryFor(EventInsert))
	assert.Equal(t, InsertUpdateExpiry, ExpiryFor(EventUpdate))
	assert.Equal(t, DeleteExpiry, ExpiryFor(EventDelete))
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityFor(EventInsert, 100))
	assert.Equal(t, PriorityHigh, PriorityFor(EventUpdate, HighValueThreshold))
	assert.Equal(t, PriorityMedium, PriorityFor(EventUpdate, 100))
	assert.Equal(t, PriorityLow, PriorityFor(EventDelete, 100))
	assert.Equal(t, PriorityHigh, PriorityFor(EventDelete, HighValueThreshold+1))
}

func TestDedupKey(t *testing.T) {
	a := NotificationData{Record: NotificationRecord{TransactionID: "tx1", EventType: EventInsert}}
	b := NotificationData{Record: NotificationRecord{TransactionID: "tx1", EventType: EventUpdate}}
	c := NotificationData{Record: NotificationRecord{TransactionID: "tx2", EventType: EventInsert}}

	assert.Equal(t, a.DedupKey(), a.DedupKey())
	assert.NotEqual(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())
}

func TestPurchaseSummary(t *testing.T) {
	tx := Transaction{
		Table: TablePurchases,
		Purchase: &PurchaseTransaction{
			ID:           "tx1",
			SupplierName: "Wanjiku Traders",
			MaterialType: "copper",
			WeightKG:     25.5,
			TotalAmount:  19500,
		},
	}

	s := tx.Summary(EventInsert)
	assert.Contains(t, s, "Purchase recorded")
	assert.Contains(t, s, "Wanjiku Traders")
	assert.Contains(t, s, "25.5kg copper")
	assert.Contains(t, s, "KES 19500.00")

	assert.Contains(t, tx.Summary(EventUpdate), "Purchase updated")
	assert.Contains(t, tx.Summary(EventDelete), "Purchase deleted")
}

func TestWalkInPurchaseSummary(t *testing.T) {
	tx := Transaction{
		Table:    TablePurchases,
		Purchase: &PurchaseTransaction{ID: "tx1", IsWalkIn: true, MaterialType: "steel", WeightKG: 10, TotalAmount: 900},
	}
	assert.Contains(t, tx.Summary(EventInsert), "walk-in supplier")
}

func TestSaleSummaryAndPhotos(t *testing.T) {
	tx := Transaction{
		Table: TableSales,
		Sale:  &SaleTransaction{ID: "s1", BuyerName: "Nakuru Steelworks", MaterialType: "steel", WeightKG: 1200, TotalAmount: 96000},
	}

	assert.Contains(t, tx.Summary(EventInsert), "Sale recorded")
	assert.Contains(t, tx.Summary(EventInsert), "Nakuru Steelworks")
	assert.False(t, tx.HasPhotos())
	assert.Equal(t, "s1", tx.ID())
	assert.Equal(t, 96000.0, tx.Total())
}

func TestPermissionsFor(t *testing.T) {
	admin := PermissionsFor(RoleAdmin)
	assert.True(t, admin[PermManageUsers])
	assert.True(t, admin[PermRunRecovery])

	manager := PermissionsFor(RoleManager)
	assert.True(t, manager[PermHandlePayouts])
	assert.False(t, manager[PermManageUsers])

	clerk := PermissionsFor(RoleClerk)
	assert.True(t, clerk[PermRecordTransactions])
	assert.False(t, clerk[PermRunRecovery])

	assert.Empty(t, PermissionsFor(RoleNone))
	assert.Empty(t, PermissionsFor(Role("intern")))
}
