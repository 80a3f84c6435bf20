// Package session emite e valida sessões assinadas com HS256.
package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

const (
	CookieName      = "session"
	DefaultLifetime = 24 * time.Hour
	issuer          = "settlement-guard"
)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Manager implementa ports.SessionService sobre bearer tokens ou o cookie de sessão.
type Manager struct {
	key      []byte
	lifetime time.Duration
	clock    ports.Clock
}

var _ ports.SessionService = (*Manager)(nil)

func NewManager(key []byte, lifetime time.Duration, clock ports.Clock) (*Manager, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("session key must be at least 16 bytes")
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if clock == nil {
		clock = ports.SystemClock
	}
	return &Manager{key: key, lifetime: lifetime, clock: clock}, nil
}

func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// Issue assina uma sessão para user e devolve o token com a expiração.
func (m *Manager) Issue(user domain.User) (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.lifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role: user.Role,
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueGuest cria uma identidade de convidado descartável.
func (m *Manager) IssueGuest() (domain.User, string, time.Time, error) {
	user := domain.User{ID: "guest_" + uuid.NewString(), Role: domain.RoleGuest}
	token, expiresAt, err := m.Issue(user)
	return user, token, expiresAt, err
}

func (m *Manager) CurrentUser(r *http.Request) (*domain.User, error) {
	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		if cookie, err := r.Cookie(CookieName); err == nil {
			raw = cookie.Value
		}
	}
	if raw == "" {
		return nil, domain.ErrUnauthorized
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if parsed.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	role := parsed.Role
	if role == "" {
		role = domain.RoleUser
	}
	return &domain.User{ID: parsed.Subject, Role: role}, nil
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type contextKey struct{}

// WithUser guarda o usuário resolvido em ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFrom devolve o usuário guardado por WithUser, ou nil.
func UserFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(contextKey{}).(*domain.User)
	return user
}
