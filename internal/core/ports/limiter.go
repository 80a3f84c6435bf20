// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type RateLimiter interface {
	Admit(ctx context.Context, key string, rule domain.RateLimitRule) (domain.Decision, error)
	Allow(ctx context.Context, req domain.RateLimitRequest) (domain.Decision, error)
}

type ReplayGuard interface {
	Seen(ctx context.Context, token string) (bool, error)
	Record(ctx context.Context, token string) error
	TTL() time.Duration
}

type Clock interface {
	Now() time.Time
}

// ClockFunc adapta uma função ao contrato Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)
