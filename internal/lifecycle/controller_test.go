package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitializeForTests()
	m.Run()
}

// MockRefresher implements Refresher with controllable behavior.
type MockRefresher struct {
	mu sync.Mutex

	dataCalls   int32
	notifCalls  int32
	dataErr     error
	notifErr    error
	block       chan struct{} // non-nil: RefreshData blocks until closed
	inFlightMax int32
	inFlight    int32
}

func (m *MockRefresher) RefreshData(ctx context.Context) error {
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		max := atomic.LoadInt32(&m.inFlightMax)
		if cur <= max || atomic.CompareAndSwapInt32(&m.inFlightMax, max, cur) {
			break
		}
	}

	atomic.AddInt32(&m.dataCalls, 1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataErr
}

func (m *MockRefresher) RefreshNotifications(ctx context.Context) error {
	atomic.AddInt32(&m.notifCalls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifErr
}

func (m *MockRefresher) DataCalls() int  { return int(atomic.LoadInt32(&m.dataCalls)) }
func (m *MockRefresher) NotifCalls() int { return int(atomic.LoadInt32(&m.notifCalls)) }

func testConfig() Config {
	return Config{
		DebounceDelay:     10 * time.Millisecond,
		MinResumeInterval: 100 * time.Millisecond,
		StepTimeout:       200 * time.Millisecond,
		ResumeTimeout:     300 * time.Millisecond,
		WatchdogTimeout:   time.Second,
	}
}

func newTestController(t *testing.T, ref Refresher) *Controller {
	t.Helper()
	c := NewController(testConfig(), ref, nil)
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		2*time.Second, 2*time.Millisecond)
}

func TestVisibilityReturnTriggersResume(t *testing.T) {
	ref := &MockRefresher{}
	c := newTestController(t, ref)

	c.Send(VisibilityChanged{Visible: false})
	c.Send(VisibilityChanged{Visible: true})

	require.Eventually(t, func() bool { return ref.NotifCalls() == 1 },
		2*time.Second, 2*time.Millisecond)
	waitState(t, c, StateIdle)
	assert.Equal(t, 1, ref.DataCalls())
	assert.False(t, c.Loading())
}

func TestRapidTogglesDebounceToOneResume(t *testing.T) {
	ref := &MockRefresher{}
	c := newTestController(t, ref)

	for i := 0; i < 10; i++ {
		c.Send(VisibilityChanged{Visible: false})
		c.Send(VisibilityChanged{Visible: true})
	}

	require.Eventually(t, func() bool { return ref.NotifCalls() >= 1 },
		2*time.Second, 2*time.Millisecond)
	waitState(t, c, StateIdle)
	// The debounce batches the storm into a single resume.
	assert.Equal(t, 1, ref.DataCalls())
}

func TestSingleFlight(t *testing.T) {
	ref := &MockRefresher{block: make(chan struct{})}
	c := newTestController(t, ref)

	c.Send(VisibilityChanged{Visible: false})
	c.Send(VisibilityChanged{Visible: true})
	waitState(t, c, StateResuming)

	// Triggers landing mid-resume must not start a second one.
	c.Send(NetworkOnline{})
	c.Send(FocusChanged{Focused: false})
	c.Send(FocusChanged{Focused: true})
	time.Sleep(30 * time.Millisecond)

	close(ref.block)
	waitState(t, c, StateIdle)
	assert.EqualValues(t, 1, atomic.LoadInt32(&ref.inFlightMax))
}

func TestMinIntervalSkipsSecondResume(t *testing.T) {
	ref := &MockRefresher{}
	c := newTestController(t, ref)

	c.Send(NetworkOnline{})
	require.Eventually(t, func() bool { return ref.DataCalls() == 1 },
		2*time.Second, 2*time.Millisecond)
	waitState(t, c, StateIdle)

	c.Send(NetworkOnline{})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, ref.DataCalls())
}

func TestAuthLoadingBlocksResume(t *testing.T) {
	ref := &MockRefresher{}
	c := newTestController(t, ref)

	c.Send(AuthLoadingChanged{Loading: true})
	c.Send(NetworkOnline{})

	require.Eventually(t, func() bool { return c.BlockedByAuthCount() == 1 },
		2*time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, ref.DataCalls())
	assert.Equal(t, StateIdle, c.State())

	// Auth settles; the next trigger resumes normally.
	c.Send(AuthLoadingChanged{Loading: false})
	c.Send(NetworkOnline{})
	require.Eventually(t, func() bool { return ref.DataCalls() == 1 },
		2*time.Second, 2*time.Millisecond)
}

func TestResumeErrorRetainsMessage(t *testing.T) {
	ref := &MockRefresher{}
	ref.mu.Lock()
	ref.dataErr = fmt.Errorf("backing store unreachable")
	ref.mu.Unlock()
	c := newTestController(t, ref)

	c.Send(NetworkOnline{})
	waitState(t, c, StateError)
	assert.Contains(t, c.ErrorMessage(), "backing store unreachable")
	assert.False(t, c.Loading())
	// The failed step short-circuits the second one.
	assert.Equal(t, 0, ref.NotifCalls())
}

func TestStepTimeoutProducesTimeoutError(t *testing.T) {
	ref := &MockRefresher{block: make(chan struct{})}
	c := newTestController(t, ref)
	defer close(ref.block)

	c.Send(NetworkOnline{})
	waitState(t, c, StateError)
	assert.Contains(t, c.ErrorMessage(), "timed out")
}

func TestForceRecoveryClearsErrorAndBypassesMinInterval(t *testing.T) {
	ref := &MockRefresher{}
	ref.mu.Lock()
	ref.dataErr = fmt.Errorf("flaky")
	ref.mu.Unlock()

	cleared := int32(0)
	c := NewController(testConfig(), ref, func() { atomic.AddInt32(&cleared, 1) })
	c.Start()
	t.Cleanup(c.Stop)

	c.Send(NetworkOnline{})
	waitState(t, c, StateError)

	ref.mu.Lock()
	ref.dataErr = nil
	ref.mu.Unlock()

	// Well inside the min interval, so only the force path can run this.
	c.ForceRecovery()
	waitState(t, c, StateIdle)
	assert.Empty(t, c.ErrorMessage())
	assert.EqualValues(t, 1, atomic.LoadInt32(&cleared))
	assert.Equal(t, 2, ref.DataCalls())
}

func TestHiddenAndUnfocusedSkipsResume(t *testing.T) {
	ref := &MockRefresher{}
	c := newTestController(t, ref)

	c.Send(VisibilityChanged{Visible: false})
	c.Send(FocusChanged{Focused: false})
	c.Send(NetworkOnline{})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, ref.DataCalls())
}

func TestWatchdogForcesLoadingOff(t *testing.T) {
	ref := &MockRefresher{block: make(chan struct{})}
	cfg := testConfig()
	cfg.StepTimeout = 2 * time.Second
	cfg.ResumeTimeout = 2 * time.Second
	cfg.WatchdogTimeout = 20 * time.Millisecond

	c := NewController(cfg, ref, nil)
	c.Start()
	t.Cleanup(c.Stop)
	t.Cleanup(func() { close(ref.block) })

	c.Send(NetworkOnline{})
	require.Eventually(t, func() bool { return c.WatchdogFirings() == 1 },
		2*time.Second, 2*time.Millisecond)
	assert.False(t, c.Loading())
	assert.NotEmpty(t, c.ErrorMessage())
}
