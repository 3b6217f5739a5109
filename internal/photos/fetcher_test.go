package photos

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitializeForTests()
	m.Run()
}

// MockSource implements Source for testing
type MockSource struct {
	photosByCall [][]models.TransactionPhoto
	errByCall    []error
	calls        int

	createdAt    time.Time
	createdAtErr error
}

func (m *MockSource) PhotosFor(ctx context.Context, transactionID string) ([]models.TransactionPhoto, error) {
	i := m.calls
	m.calls++
	if i >= len(m.photosByCall) {
		i = len(m.photosByCall) - 1
	}
	return m.photosByCall[i], m.errByCall[i]
}

func (m *MockSource) TransactionCreatedAt(ctx context.Context, transactionID string) (time.Time, error) {
	return m.createdAt, m.createdAtErr
}

func noSleep(f *Fetcher) []time.Duration {
	var slept []time.Duration
	f.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	return slept
}

func TestFetchFirstTry(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{{{ID: "p1", TransactionID: "tx1"}}},
		errByCall:    []error{nil},
	}
	f := NewFetcher(src)
	noSleep(f)

	res := f.Fetch(context.Background(), "tx1")
	assert.True(t, res.Fetched)
	assert.Len(t, res.Photos, 1)
	assert.Equal(t, 1, res.Attempts)
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{nil, nil, {{ID: "p1", TransactionID: "tx1"}}},
		errByCall:    []error{fmt.Errorf("connection reset"), fmt.Errorf("connection reset"), nil},
	}
	f := NewFetcher(src)
	noSleep(f)

	res := f.Fetch(context.Background(), "tx1")
	assert.True(t, res.Fetched)
	assert.Len(t, res.Photos, 1)
	assert.Equal(t, 3, res.Attempts)
}

func TestFetchExhaustsRetriesWithoutError(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{nil},
		errByCall:    []error{fmt.Errorf("unreachable")},
	}
	f := NewFetcher(src)
	noSleep(f)

	res := f.Fetch(context.Background(), "tx1")
	assert.False(t, res.Fetched)
	assert.Empty(t, res.Photos)
	assert.Equal(t, MaxRetries+1, res.Attempts)
	assert.Equal(t, MaxRetries+1, src.calls)
}

func TestFetchZeroPhotosSettledTransactionIsAnswer(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{{}},
		errByCall:    []error{nil},
		createdAt:    time.Now().Add(-10 * time.Minute),
	}
	f := NewFetcher(src)
	noSleep(f)

	res := f.Fetch(context.Background(), "tx1")
	assert.True(t, res.Fetched)
	assert.Empty(t, res.Photos)
	assert.Equal(t, 1, res.Attempts)
}

func TestFetchZeroPhotosFreshTransactionRetries(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{{}},
		errByCall:    []error{nil},
		createdAt:    time.Now(),
	}
	f := NewFetcher(src)
	noSleep(f)

	res := f.Fetch(context.Background(), "tx1")
	// Uploads assumed in flight the whole time: retries exhaust.
	assert.False(t, res.Fetched)
	assert.Equal(t, MaxRetries+1, res.Attempts)
}

func TestFetchBackoffSchedule(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{nil},
		errByCall:    []error{fmt.Errorf("down")},
	}
	f := NewFetcher(src)

	var slept []time.Duration
	f.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	f.Fetch(context.Background(), "tx1")
	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
	}, slept)
}

func TestBackoffDelayCapped(t *testing.T) {
	assert.Equal(t, 5000*time.Millisecond, backoffDelay(10))
}

func TestFetchStopsOnCancelledSleep(t *testing.T) {
	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{nil},
		errByCall:    []error{fmt.Errorf("down")},
	}
	f := NewFetcher(src)
	f.SetSleepFunc(func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	})

	res := f.Fetch(context.Background(), "tx1")
	assert.False(t, res.Fetched)
	assert.Equal(t, 1, res.Attempts)
}

func TestFetchRecordsRetryAndExhaustionMetrics(t *testing.T) {
	m := metrics.Get()
	retriesBefore := testutil.ToFloat64(m.PhotoFetchRetries)
	exhaustedBefore := testutil.ToFloat64(m.PhotoFetchExhausted)

	src := &MockSource{
		photosByCall: [][]models.TransactionPhoto{nil},
		errByCall:    []error{fmt.Errorf("connection reset")},
	}
	f := NewFetcher(src)
	noSleep(f)

	res := f.Fetch(context.Background(), "tx1")
	assert.False(t, res.Fetched)

	assert.Equal(t, retriesBefore+float64(MaxRetries), testutil.ToFloat64(m.PhotoFetchRetries))
	assert.Equal(t, exhaustedBefore+1, testutil.ToFloat64(m.PhotoFetchExhausted))
}
