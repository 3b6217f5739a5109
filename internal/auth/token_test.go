package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitializeForTests()
	m.Run()
}

var testSecret = []byte("test-secret-key")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func operatorToken(t *testing.T, userID string) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"sub":   userID,
		"email": "clerk@meruscrap.co.ke",
		"role":  "clerk",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func TestSetTokenFirstIsSignedIn(t *testing.T) {
	p := NewTokenProvider(testSecret)

	require.NoError(t, p.SetToken(operatorToken(t, "user-1")))

	ev := <-p.Events()
	assert.Equal(t, EventSignedIn, ev.Kind)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "user-1", ev.Session.UserID)
	assert.Equal(t, models.RoleClerk, ev.Session.Role)
	assert.Equal(t, "clerk@meruscrap.co.ke", ev.Session.Email)
}

func TestSetTokenSameUserIsRefresh(t *testing.T) {
	p := NewTokenProvider(testSecret)

	require.NoError(t, p.SetToken(operatorToken(t, "user-1")))
	require.NoError(t, p.SetToken(operatorToken(t, "user-1")))

	<-p.Events()
	ev := <-p.Events()
	assert.Equal(t, EventTokenRefreshed, ev.Kind)
}

func TestSetTokenDifferentUserIsSignedIn(t *testing.T) {
	p := NewTokenProvider(testSecret)

	require.NoError(t, p.SetToken(operatorToken(t, "user-1")))
	require.NoError(t, p.SetToken(operatorToken(t, "user-2")))

	<-p.Events()
	ev := <-p.Events()
	assert.Equal(t, EventSignedIn, ev.Kind)
	assert.Equal(t, "user-2", ev.Session.UserID)
}

func TestSignOutEmitsAndClears(t *testing.T) {
	p := NewTokenProvider(testSecret)
	require.NoError(t, p.SetToken(operatorToken(t, "user-1")))
	<-p.Events()

	p.SignOut()
	ev := <-p.Events()
	assert.Equal(t, EventSignedOut, ev.Kind)
	assert.Nil(t, ev.Session)

	_, err := p.GetSession()
	assert.Error(t, err)
}

func TestGetSessionReturnsCopy(t *testing.T) {
	p := NewTokenProvider(testSecret)
	require.NoError(t, p.SetToken(operatorToken(t, "user-1")))

	sess, err := p.GetSession()
	require.NoError(t, err)
	sess.UserID = "tampered"

	again, err := p.GetSession()
	require.NoError(t, err)
	assert.Equal(t, "user-1", again.UserID)
}

func TestSetTokenRejectsBadSignature(t *testing.T) {
	p := NewTokenProvider(testSecret)
	bad := signToken(t, []byte("wrong-secret"), jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.Error(t, p.SetToken(bad))
}

func TestSetTokenRejectsExpired(t *testing.T) {
	p := NewTokenProvider(testSecret)
	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	assert.Error(t, p.SetToken(expired))
}

func TestSetTokenRejectsMissingSubject(t *testing.T) {
	p := NewTokenProvider(testSecret)
	noSub := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	assert.Error(t, p.SetToken(noSub))
}

func TestSetTokenGarbage(t *testing.T) {
	p := NewTokenProvider(testSecret)
	assert.Error(t, p.SetToken("not.a.token"))
}
