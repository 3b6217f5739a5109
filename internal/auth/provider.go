// Package auth mirrors the hosted auth service's session into the process.
// The auth service itself is a black box; this package validates its access
// tokens and republishes session changes as a typed event stream.
package auth

import (
	"time"

	"github.com/meruscrap/pimapos/internal/models"
)

// EventKind classifies an auth state change.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Session is the decoded auth session.
type Session struct {
	UserID    string
	Email     string
	Role      models.Role
	ExpiresAt time.Time
}

// Event is one entry in the auth event stream.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Provider supplies the current session and a stream of session changes.
// GetSession is a point read and never emits an event.
type Provider interface {
	GetSession() (*Session, error)
	Events() <-chan Event
}
