package guard

import (
	"context"
	"testing"
	"time"

	"github.com/meruscrap/pimapos/internal/exclusion"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/meruscrap/pimapos/internal/queue"
	"github.com/meruscrap/pimapos/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitializeForTests()
	m.Run()
}

type guardSession struct{}

func (guardSession) SessionID() string { return "sess-g" }
func (guardSession) UserID() string    { return "user-g" }

func newGuardFixture(t *testing.T) (*NavigationGuard, *queue.Queue, *store.MemoryRows) {
	t.Helper()
	rows := store.NewMemoryRows()
	st := store.New(rows, nil, exclusion.NewMemoryStore(), exclusion.NewMemoryStore())
	q := queue.New(st, guardSession{})
	return New(q, st), q, rows
}

func pending(id, txID string) models.NotificationData {
	return models.NotificationData{
		Record: models.NotificationRecord{
			ID:            id,
			TransactionID: txID,
			EventType:     models.EventInsert,
			CreatedAt:     time.Now().UTC(),
		},
		Photos: []models.TransactionPhoto{},
	}
}

func TestCanLeaveWhenQueueEmpty(t *testing.T) {
	g, _, _ := newGuardFixture(t)
	assert.True(t, g.CanLeave())
	assert.True(t, g.AttemptNavigate("/reports"))
	assert.Empty(t, g.BlockedDestination())
}

func TestBlockedWhileModalVisibleWithUnhandled(t *testing.T) {
	g, q, rows := newGuardFixture(t)
	data := pending("n1", "tx1")
	rows.Put(data.Record)
	q.Add(data)

	assert.False(t, g.CanLeave())
	assert.False(t, g.AttemptNavigate("/reports"))
	assert.Equal(t, "/reports", g.BlockedDestination())
	assert.Equal(t, 1, g.PendingCount())
}

func TestLogoutBlockedLikeAnyNavigation(t *testing.T) {
	g, q, rows := newGuardFixture(t)
	data := pending("n1", "tx1")
	rows.Put(data.Record)
	q.Add(data)

	assert.False(t, g.AttemptNavigate(DestinationLogout))
	assert.Equal(t, DestinationLogout, g.BlockedDestination())
}

func TestUnblockedAfterHandling(t *testing.T) {
	g, q, rows := newGuardFixture(t)
	data := pending("n1", "tx1")
	rows.Put(data.Record)
	q.Add(data)

	assert.False(t, g.AttemptNavigate("/suppliers"))

	require.NoError(t, q.MarkCurrentHandled(context.Background()))

	assert.True(t, g.CanLeave())
	assert.True(t, g.AttemptNavigate("/suppliers"))
	assert.Empty(t, g.BlockedDestination())
}

func TestGetPendingNotificationsExcludesHandled(t *testing.T) {
	g, q, rows := newGuardFixture(t)

	handledData := pending("n1", "tx1")
	rows.Put(handledData.Record)
	q.Add(handledData)
	require.NoError(t, q.MarkCurrentHandled(context.Background()))

	dismissed := pending("n2", "tx2")
	rows.Put(dismissed.Record)
	q.Add(dismissed)
	require.NoError(t, q.DismissCurrent(context.Background()))

	open := pending("n3", "tx3")
	rows.Put(open.Record)
	q.Add(open)

	recs, err := g.GetPendingNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.False(t, rec.IsHandled)
		assert.NotEqual(t, "n1", rec.ID)
	}
}
