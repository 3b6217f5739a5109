package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meruscrap/pimapos/internal/exclusion"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestMain(m *testing.M) {
	logger.InitializeForTests()
	m.Run()
}

// testSession is a fixed attribution source.
type testSession struct {
	sessionID string
	userID    string
}

func (s testSession) SessionID() string { return s.sessionID }
func (s testSession) UserID() string    { return s.userID }

type StoreTestSuite struct {
	suite.Suite
	rows      *MemoryRows
	handled   *exclusion.MemoryStore
	dismissed *exclusion.MemoryStore
	store     *Store
	sess      testSession
	ctx       context.Context
}

func (suite *StoreTestSuite) SetupTest() {
	suite.rows = NewMemoryRows()
	suite.handled = exclusion.NewMemoryStore()
	suite.dismissed = exclusion.NewMemoryStore()
	suite.store = New(suite.rows, nil, suite.handled, suite.dismissed)
	suite.sess = testSession{sessionID: "sess-a", userID: "user-a"}
	suite.ctx = context.Background()
}

func (suite *StoreTestSuite) saveRecord(txID string, event models.EventType) string {
	tx := &models.Transaction{
		Table: models.TablePurchases,
		Purchase: &models.PurchaseTransaction{
			ID:           txID,
			SupplierName: "Kamau Scrap",
			MaterialType: "copper",
			WeightKG:     12,
			TotalAmount:  8400,
		},
	}
	draft := &models.NotificationRecord{
		TransactionID:    txID,
		TransactionTable: models.TablePurchases,
		EventType:        event,
		NotificationData: EncodeTransaction(tx),
		RequiresAction:   true,
	}
	id, err := suite.store.Save(suite.ctx, draft)
	require.NoError(suite.T(), err)
	return id
}

func (suite *StoreTestSuite) TestSaveSetsExpiry() {
	id := suite.saveRecord("tx1", models.EventInsert)
	rec, err := suite.rows.Get(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.WithinDuration(suite.T(), time.Now().UTC().Add(models.InsertUpdateExpiry), rec.ExpiresAt, time.Minute)
	assert.Equal(suite.T(), models.PriorityMedium, rec.PriorityLevel)
}

func (suite *StoreTestSuite) TestSaveDeleteEventShortExpiry() {
	id := suite.saveRecord("tx1", models.EventDelete)
	rec, err := suite.rows.Get(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.WithinDuration(suite.T(), time.Now().UTC().Add(models.DeleteExpiry), rec.ExpiresAt, time.Minute)
}

func (suite *StoreTestSuite) TestLoadReturnsPending() {
	suite.saveRecord("tx1", models.EventInsert)
	suite.saveRecord("tx2", models.EventUpdate)

	items, err := suite.store.Load(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), items, 2)
	require.NotNil(suite.T(), items[0].Transaction)
	assert.Equal(suite.T(), "Kamau Scrap", items[0].Transaction.Purchase.SupplierName)
}

func (suite *StoreTestSuite) TestLoadFiltersLocallyDismissed() {
	id := suite.saveRecord("tx1", models.EventInsert)
	suite.saveRecord("tx2", models.EventInsert)
	require.NoError(suite.T(), suite.dismissed.Add(suite.ctx, id))

	items, err := suite.store.Load(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), items, 1)
	assert.Equal(suite.T(), "tx2", items[0].Record.TransactionID)
}

func (suite *StoreTestSuite) TestLoadFiltersLocallyHandled() {
	id := suite.saveRecord("tx1", models.EventInsert)
	require.NoError(suite.T(), suite.handled.Add(suite.ctx, id))

	items, err := suite.store.Load(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), items)
}

func (suite *StoreTestSuite) TestLoadDropsHandledRowFromBadQuery() {
	// A handled row leaking through the pending predicate must be dropped,
	// not surfaced and not fatal.
	suite.rows.Put(models.NotificationRecord{
		ID:            "leak",
		TransactionID: "tx1",
		EventType:     models.EventInsert,
		IsHandled:     true,
		CreatedAt:     time.Now().UTC(),
	})
	suite.saveRecord("tx2", models.EventInsert)
	suite.rows.LeakHandled = true

	items, err := suite.store.Load(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), items, 1)
	assert.Equal(suite.T(), "tx2", items[0].Record.TransactionID)
}

func (suite *StoreTestSuite) TestMarkHandledVerifiesAndExcludes() {
	id := suite.saveRecord("tx1", models.EventInsert)

	require.NoError(suite.T(), suite.store.MarkHandled(suite.ctx, id, suite.sess))

	rec, err := suite.rows.Get(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), rec.IsHandled)
	assert.False(suite.T(), rec.IsDismissed)
	require.NotNil(suite.T(), rec.HandledBy)
	assert.Equal(suite.T(), "user-a", *rec.HandledBy)
	require.NotNil(suite.T(), rec.HandledSession)
	assert.Equal(suite.T(), "sess-a", *rec.HandledSession)

	assert.True(suite.T(), suite.handled.Has(suite.ctx, id))
	assert.False(suite.T(), suite.dismissed.Has(suite.ctx, id))
}

func (suite *StoreTestSuite) TestMarkHandledFailsClosedWhenWriteLost() {
	id := suite.saveRecord("tx1", models.EventInsert)
	suite.rows.DropWrites = true

	err := suite.store.MarkHandled(suite.ctx, id, suite.sess)
	require.Error(suite.T(), err)

	// The id must not be excluded: the notification stays visible.
	assert.False(suite.T(), suite.handled.Has(suite.ctx, id))

	items, loadErr := suite.store.Load(suite.ctx)
	require.NoError(suite.T(), loadErr)
	assert.Len(suite.T(), items, 1)
}

func (suite *StoreTestSuite) TestMarkHandledFailsClosedWhenReadbackFails() {
	id := suite.saveRecord("tx1", models.EventInsert)
	suite.rows.GetErr = fmt.Errorf("connection lost")

	err := suite.store.MarkHandled(suite.ctx, id, suite.sess)
	require.Error(suite.T(), err)
	assert.False(suite.T(), suite.handled.Has(suite.ctx, id))
}

func (suite *StoreTestSuite) TestHandledNeverResurrectedByRecovery() {
	id := suite.saveRecord("tx1", models.EventInsert)
	require.NoError(suite.T(), suite.store.MarkHandled(suite.ctx, id, suite.sess))

	pending, err := suite.store.GetPending(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), pending)
}

func (suite *StoreTestSuite) TestDismissedStaysVisibleToRecovery() {
	id := suite.saveRecord("tx1", models.EventInsert)
	require.NoError(suite.T(), suite.store.Dismiss(suite.ctx, id, suite.sess))

	// Gone from the queue load path.
	items, err := suite.store.Load(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), items)

	// Still present in the recovery view.
	pending, err := suite.store.GetPending(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), pending, 1)
	assert.True(suite.T(), pending[0].IsDismissed)
	assert.False(suite.T(), pending[0].IsHandled)
}

func (suite *StoreTestSuite) TestHandleAfterDismissClearsDismissedExclusion() {
	id := suite.saveRecord("tx1", models.EventInsert)
	require.NoError(suite.T(), suite.store.Dismiss(suite.ctx, id, suite.sess))
	require.NoError(suite.T(), suite.store.MarkHandled(suite.ctx, id, suite.sess))

	assert.True(suite.T(), suite.handled.Has(suite.ctx, id))
	assert.False(suite.T(), suite.dismissed.Has(suite.ctx, id))

	rec, err := suite.rows.Get(suite.ctx, id)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), rec.IsHandled)
	assert.False(suite.T(), rec.IsDismissed)
}

func (suite *StoreTestSuite) TestMarkExcludedAndIsExcluded() {
	assert.False(suite.T(), suite.store.IsExcluded(suite.ctx, "n1"))

	suite.store.MarkExcluded(suite.ctx, "n1", true)
	assert.True(suite.T(), suite.store.IsExcluded(suite.ctx, "n1"))

	suite.store.MarkExcluded(suite.ctx, "n2", false)
	assert.True(suite.T(), suite.store.IsExcluded(suite.ctx, "n2"))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestEncodeDecodeTransaction(t *testing.T) {
	tx := &models.Transaction{
		Table: models.TableSales,
		Sale: &models.SaleTransaction{
			ID:          "s1",
			BuyerName:   "Mombasa Metals",
			TotalAmount: 125000,
		},
	}

	raw := EncodeTransaction(tx)
	require.NotNil(t, raw)

	decoded := decodeTransaction(raw)
	require.NotNil(t, decoded)
	assert.Equal(t, "s1", decoded.ID())
	assert.Equal(t, 125000.0, decoded.Total())
}

func TestDecodeTransactionGarbage(t *testing.T) {
	assert.Nil(t, decodeTransaction(nil))
	assert.Nil(t, decodeTransaction([]byte("{not json")))
}
