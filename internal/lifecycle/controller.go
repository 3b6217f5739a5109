// Package lifecycle coordinates visibility, focus, connectivity and auth
// loading into a single resume state machine: idle -> resuming -> (idle |
// error). The controller consumes discrete events and transitions
// deterministically; no state is read out of closures.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/meruscrap/pimapos/internal/errors"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/metrics"
	"go.uber.org/zap"
)

// State is the resume machine state.
type State string

const (
	StateIdle     State = "idle"
	StateResuming State = "resuming"
	StateError    State = "error"
)

// Refresher performs the two ordered resume steps. Permission refresh is
// deliberately absent: permissions are owned by the permission session's own
// listener, and refreshing them here caused duplicate triggers historically.
type Refresher interface {
	RefreshData(ctx context.Context) error
	RefreshNotifications(ctx context.Context) error
}

// Config carries the machine's timing knobs.
type Config struct {
	// DebounceDelay batches rapid focus/blur flicker before a resume runs.
	DebounceDelay time.Duration

	// MinResumeInterval is the floor between resume attempts regardless of
	// trigger source.
	MinResumeInterval time.Duration

	// StepTimeout bounds each individual refresh step.
	StepTimeout time.Duration

	// ResumeTimeout bounds the whole resume; it protects the resume flow
	// itself.
	ResumeTimeout time.Duration

	// WatchdogTimeout independently forces the loading flag off if a fetch
	// never resolves; it protects the top-level spinner from any cause.
	WatchdogTimeout time.Duration
}

// DefaultConfig returns production timings.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:     3 * time.Second,
		MinResumeInterval: 15 * time.Second,
		StepTimeout:       30 * time.Second,
		ResumeTimeout:     20 * time.Second,
		WatchdogTimeout:   30 * time.Second,
	}
}

// Event is a discrete input to the machine.
type Event interface{ isEvent() }

// VisibilityChanged reports the page becoming visible or hidden.
type VisibilityChanged struct{ Visible bool }

// FocusChanged reports the window gaining or losing focus.
type FocusChanged struct{ Focused bool }

// NetworkOnline reports connectivity returning.
type NetworkOnline struct{}

// AuthLoadingChanged reports the auth provider entering or leaving its
// loading phase. A resume racing an in-progress auth change is forbidden.
type AuthLoadingChanged struct{ Loading bool }

func (VisibilityChanged) isEvent()  {}
func (FocusChanged) isEvent()       {}
func (NetworkOnline) isEvent()      {}
func (AuthLoadingChanged) isEvent() {}

// internal loop events
type debounceFired struct{}
type resumeDone struct{ err error }
type watchdogFired struct{}
type forceRecovery struct{}

func (debounceFired) isEvent() {}
func (resumeDone) isEvent()    {}
func (watchdogFired) isEvent() {}
func (forceRecovery) isEvent() {}

// Controller runs the resume machine.
type Controller struct {
	cfg       Config
	refresher Refresher

	// clearCache drops transient local caches during force recovery. May be
	// nil.
	clearCache func()

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Machine state, mutated only by the run loop, read via the mutex.
	mu              sync.RWMutex
	state           State
	errMsg          string
	loading         bool
	visible         bool
	focused         bool
	authLoading     bool
	lastResumeAt    time.Time
	blockedByAuth   int
	watchdogFirings int

	// loop-owned scheduling state
	debouncePending bool
	debounceTimer   *time.Timer
	watchdogTimer   *time.Timer
}

// NewController creates an idle controller. The page starts visible and
// focused, matching a fresh app load.
func NewController(cfg Config, refresher Refresher, clearCache func()) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:        cfg,
		refresher:  refresher,
		clearCache: clearCache,
		events:     make(chan Event, 64),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		visible:    true,
		focused:    true,
	}
}

// Start begins the run loop.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop halts the run loop.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Send delivers an event to the machine. Non-blocking; a full buffer drops
// the event, which is safe because every trigger is level-based and the next
// trigger re-derives the same decision.
func (c *Controller) Send(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	default:
		logger.Log.Warn("Lifecycle event buffer full, dropping event")
	}
}

// ForceRecovery clears the error state and transient caches and re-triggers a
// fresh resume, bypassing the minimum interval but not the auth guard.
func (c *Controller) ForceRecovery() {
	c.Send(forceRecovery{})
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ErrorMessage returns the retained resume error, or "".
func (c *Controller) ErrorMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Loading reports the top-level loading flag.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// BlockedByAuthCount counts resumes skipped because auth was loading.
func (c *Controller) BlockedByAuthCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockedByAuth
}

// WatchdogFirings counts loading-watchdog activations.
func (c *Controller) WatchdogFirings() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watchdogFirings
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.ctx.Done():
			c.stopTimers()
			return
		}
	}
}

func (c *Controller) handle(ev Event) {
	switch e := ev.(type) {
	case VisibilityChanged:
		wasVisible := c.getVisible()
		c.setVisible(e.Visible)
		if !wasVisible && e.Visible {
			c.scheduleResume("visibility")
		}
	case FocusChanged:
		wasFocused := c.getFocused()
		c.setFocused(e.Focused)
		if !wasFocused && e.Focused {
			c.scheduleResume("focus")
		}
	case NetworkOnline:
		c.scheduleResume("online")
	case AuthLoadingChanged:
		c.mu.Lock()
		c.authLoading = e.Loading
		c.mu.Unlock()
	case debounceFired:
		c.debouncePending = false
		c.tryResume(false)
	case forceRecovery:
		c.mu.Lock()
		c.state = StateIdle
		c.errMsg = ""
		c.mu.Unlock()
		if c.clearCache != nil {
			c.clearCache()
		}
		c.tryResume(true)
	case resumeDone:
		c.finishResume(e.err)
	case watchdogFired:
		c.mu.Lock()
		if c.loading {
			c.loading = false
			c.watchdogFirings++
			c.errMsg = errors.Timeout("loading").Error()
			c.mu.Unlock()
			metrics.Get().LoadingWatchdog.Inc()
			logger.Log.Error("Loading watchdog fired; forcing loading flag off")
		} else {
			c.mu.Unlock()
		}
	}
}

// scheduleResume starts the debounce timer unless one is already pending.
// Batching here is what keeps rapid visibility toggles to a single resume.
func (c *Controller) scheduleResume(trigger string) {
	if c.debouncePending {
		metrics.Get().ResumeSkipped.WithLabelValues("debounce_pending").Inc()
		return
	}
	c.debouncePending = true
	logger.Log.Debug("Resume scheduled", zap.String("trigger", trigger))
	c.debounceTimer = time.AfterFunc(c.cfg.DebounceDelay, func() {
		c.Send(debounceFired{})
	})
}

// tryResume re-checks every guard at fire time: state may have changed during
// the debounce delay.
func (c *Controller) tryResume(force bool) {
	c.mu.Lock()

	if c.state == StateResuming {
		c.mu.Unlock()
		metrics.Get().ResumeSkipped.WithLabelValues("in_flight").Inc()
		return
	}
	if !force && time.Since(c.lastResumeAt) < c.cfg.MinResumeInterval {
		c.mu.Unlock()
		metrics.Get().ResumeSkipped.WithLabelValues("min_interval").Inc()
		return
	}
	if c.authLoading {
		c.blockedByAuth++
		c.mu.Unlock()
		metrics.Get().ResumeBlockedAuth.Inc()
		logger.Log.Info("Resume blocked: auth still loading")
		return
	}
	if !force && !c.visible && !c.focused {
		c.mu.Unlock()
		metrics.Get().ResumeSkipped.WithLabelValues("hidden").Inc()
		return
	}

	c.state = StateResuming
	c.errMsg = ""
	c.loading = true
	c.lastResumeAt = time.Now()
	c.mu.Unlock()

	c.watchdogTimer = time.AfterFunc(c.cfg.WatchdogTimeout, func() {
		c.Send(watchdogFired{})
	})

	go func() {
		err := c.executeResume()
		c.Send(resumeDone{err: err})
	}()
}

// executeResume runs the ordered refresh steps under both the per-step and
// the outer timeout.
func (c *Controller) executeResume() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ResumeTimeout)
	defer cancel()

	if err := c.runStep(ctx, "refresh data", c.refresher.RefreshData); err != nil {
		return err
	}
	if err := c.runStep(ctx, "refresh notifications", c.refresher.RefreshNotifications); err != nil {
		return err
	}
	return nil
}

func (c *Controller) runStep(ctx context.Context, name string, step func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- step(stepCtx) }()

	select {
	case err := <-done:
		return err
	case <-stepCtx.Done():
		return errors.Timeout(name)
	}
}

func (c *Controller) finishResume(err error) {
	if c.watchdogTimer != nil {
		c.watchdogTimer.Stop()
	}

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.state = StateError
		c.errMsg = err.Error()
	} else {
		c.state = StateIdle
		c.errMsg = ""
	}
	c.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.IsTimeout(err) {
			outcome = "timeout"
		}
		logger.Log.Error("Resume failed", zap.Error(err))
	} else {
		logger.Log.Info("Resume completed")
	}
	metrics.Get().ResumeAttempts.WithLabelValues(outcome).Inc()
}

func (c *Controller) stopTimers() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	if c.watchdogTimer != nil {
		c.watchdogTimer.Stop()
	}
}

func (c *Controller) getVisible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible
}

func (c *Controller) setVisible(v bool) {
	c.mu.Lock()
	c.visible = v
	c.mu.Unlock()
}

func (c *Controller) getFocused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.focused
}

func (c *Controller) setFocused(v bool) {
	c.mu.Lock()
	c.focused = v
	c.mu.Unlock()
}
