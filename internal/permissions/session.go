// Package permissions mirrors the auth session into a role and permission
// set. Token refreshes for the already-known user are explicit no-ops; only a
// genuinely new sign-in (or the very first load) reloads permissions.
package permissions

import (
	"context"
	"sync"
	"time"

	"github.com/meruscrap/pimapos/internal/auth"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
	"go.uber.org/zap"
)

// RefreshFloor is the minimum spacing between consecutive effective refreshes
// after the first load. Guards against any caller reintroducing a refresh
// storm.
const RefreshFloor = 30 * time.Second

// RoleLoader resolves the effective role for a session. The default reads the
// role claim off the session itself; deployments with a profiles table can
// substitute a database lookup.
type RoleLoader func(ctx context.Context, sess *auth.Session) (models.Role, error)

// ClaimRoleLoader trusts the role claim on the session.
func ClaimRoleLoader(_ context.Context, sess *auth.Session) (models.Role, error) {
	return sess.Role, nil
}

// Session tracks the current operator's role and permissions.
type Session struct {
	provider auth.Provider
	loader   RoleLoader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	role  models.Role
	perms map[models.Permission]bool

	// currentUserID is the identity the loaded permissions belong to. The
	// comparison against incoming events happens here, in owned state, not in
	// values captured by callbacks.
	currentUserID string
	loadedOnce    bool
	lastRefresh   time.Time
	reloads       int
}

// NewSession creates a least-privileged session. loader may be nil for the
// claim-based default.
func NewSession(provider auth.Provider, loader RoleLoader) *Session {
	if loader == nil {
		loader = ClaimRoleLoader
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		provider: provider,
		loader:   loader,
		ctx:      ctx,
		cancel:   cancel,
		role:     models.RoleNone,
		perms:    map[models.Permission]bool{},
	}
}

// Start begins consuming the auth event stream.
func (s *Session) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts event consumption.
func (s *Session) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) run() {
	defer s.wg.Done()
	events := s.provider.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ev)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handle(ev auth.Event) {
	switch ev.Kind {
	case auth.EventSignedIn:
		if ev.Session == nil {
			return
		}
		s.mu.RLock()
		known := s.loadedOnce && s.currentUserID == ev.Session.UserID
		s.mu.RUnlock()
		if known {
			// Duplicate sign-in for the user we already loaded. Treat like a
			// refresh: reloading here is what caused refresh loops.
			return
		}
		s.reload(ev.Session)
	case auth.EventTokenRefreshed:
		// Same-user token rotation. Never a reload.
	case auth.EventSignedOut:
		s.clear()
	}
}

// reload resolves and installs the role for sess. Errors fail closed to the
// least-privileged role.
func (s *Session) reload(sess *auth.Session) {
	role, err := s.loader(s.ctx, sess)
	if err != nil {
		logger.Log.Error("Permission load failed; defaulting to least privilege",
			logger.WithUserID(sess.UserID), zap.Error(err))
		role = models.RoleNone
	}

	s.mu.Lock()
	s.role = role
	s.perms = models.PermissionsFor(role)
	s.currentUserID = sess.UserID
	s.loadedOnce = true
	s.lastRefresh = time.Now()
	s.reloads++
	s.mu.Unlock()

	logger.Log.Info("Permissions loaded",
		logger.WithUserID(sess.UserID),
		zap.String("role", string(role)),
	)
}

func (s *Session) clear() {
	s.mu.Lock()
	s.role = models.RoleNone
	s.perms = map[models.Permission]bool{}
	s.currentUserID = ""
	s.loadedOnce = false
	s.mu.Unlock()
	logger.Log.Info("Permissions cleared on sign-out")
}

// RefreshPermissions reloads the current user's permissions on demand,
// debounced to the refresh floor after the first load.
func (s *Session) RefreshPermissions() {
	s.mu.RLock()
	loaded := s.loadedOnce
	last := s.lastRefresh
	s.mu.RUnlock()

	if loaded && time.Since(last) < RefreshFloor {
		logger.Log.Debug("Permission refresh debounced")
		return
	}

	sess, err := s.provider.GetSession()
	if err != nil {
		s.clear()
		return
	}
	s.reload(sess)
}

// Role returns the current role.
func (s *Session) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Has reports whether the current role carries the permission.
func (s *Session) Has(perm models.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perms[perm]
}

// UserID returns the identity the loaded permissions belong to, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// ReloadCount counts effective permission reloads since start.
func (s *Session) ReloadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reloads
}
