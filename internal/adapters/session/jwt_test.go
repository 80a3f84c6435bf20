package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestManager_IssueAndResolve(t *testing.T) {
	manager, err := NewManager(testKey, time.Hour, nil)
	require.NoError(t, err)

	token, expiresAt, err := manager.Issue(domain.User{ID: "user-1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	user, err := manager.CurrentUser(req)
	require.NoError(t, err)
	assert.Equal(t, &domain.User{ID: "user-1", Role: domain.RoleAdmin}, user)

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	user, err = manager.CurrentUser(cookieReq)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestManager_RejectsMissingExpiredAndForeignTokens(t *testing.T) {
	now := time.Now()
	clock := ports.ClockFunc(func() time.Time { return now })
	manager, err := NewManager(testKey, time.Minute, clock)
	require.NoError(t, err)

	_, err = manager.CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	token, _, err := manager.Issue(domain.User{ID: "user-1"})
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, err = manager.CurrentUser(req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte("another-key-another-key"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)
	_, err = manager.CurrentUser(req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestManager_GuestDefaultsAndRole(t *testing.T) {
	manager, err := NewManager(testKey, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLifetime, manager.Lifetime())

	user, token, _, err := manager.IssueGuest()
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGuest, user.Role)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resolved, err := manager.CurrentUser(req)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	assert.False(t, resolved.IsAdmin())
}

func TestNewManager_RejectsShortKey(t *testing.T) {
	_, err := NewManager([]byte("short"), time.Hour, nil)
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	assert.Nil(t, UserFrom(context.Background()))
	user := &domain.User{ID: "u"}
	assert.Same(t, user, UserFrom(WithUser(context.Background(), user)))
}

func TestRedirectCompleter(t *testing.T) {
	completer := NewRedirectCompleter("https://app.example.com/welcome")
	target, err := completer.Complete(context.Background(), "code", "state")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/welcome", target)

	_, err = completer.Complete(context.Background(), "", "state")
	assert.Error(t, err)
}
