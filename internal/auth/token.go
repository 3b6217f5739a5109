package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
)

const eventBufferSize = 16

// TokenProvider validates HS256 access tokens minted by the hosted auth
// service and derives the event stream from consecutive SetToken calls: a new
// user id is a sign-in, the same user id is a token refresh.
type TokenProvider struct {
	jwtSecret []byte

	mu      sync.RWMutex
	current *Session
	events  chan Event
}

// NewTokenProvider creates a signed-out provider.
func NewTokenProvider(jwtSecret []byte) *TokenProvider {
	return &TokenProvider{
		jwtSecret: jwtSecret,
		events:    make(chan Event, eventBufferSize),
	}
}

// GetSession returns the current session without emitting an event.
func (p *TokenProvider) GetSession() (*Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, errors.New("no active session")
	}
	sess := *p.current
	return &sess, nil
}

// Events returns the auth event stream.
func (p *TokenProvider) Events() <-chan Event {
	return p.events
}

// SetToken validates a token and publishes the resulting event. The token of
// an already-known user produces TOKEN_REFRESHED; anything else SIGNED_IN.
func (p *TokenProvider) SetToken(tokenString string) error {
	sess, err := p.parse(tokenString)
	if err != nil {
		return err
	}

	p.mu.Lock()
	kind := EventSignedIn
	if p.current != nil && p.current.UserID == sess.UserID {
		kind = EventTokenRefreshed
	}
	p.current = sess
	p.mu.Unlock()

	p.emit(Event{Kind: kind, Session: sess})
	return nil
}

// SignOut clears the session and publishes SIGNED_OUT.
func (p *TokenProvider) SignOut() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.emit(Event{Kind: EventSignedOut})
}

func (p *TokenProvider) parse(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, errors.New("invalid subject in token")
	}

	sess := &Session{UserID: userID, Role: models.RoleNone}
	if email, ok := claims["email"].(string); ok {
		sess.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		sess.Role = models.Role(role)
	}
	if exp, ok := claims["exp"].(float64); ok {
		sess.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return sess, nil
}

func (p *TokenProvider) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		logger.Log.Warn("Auth event buffer full, dropping event")
	}
}
