// Package domain concentra entidades e estruturas centrais do núcleo de integridade transacional.
package domain

import "time"

// Ações com limite de taxa nomeado.
const (
	ActionGuestSignIn   = "guest_signin"
	ActionPresence      = "presence"
	ActionAdminList     = "admin_list"
	ActionStatus        = "status"
	ActionVerifyPayment = "verify_payment"
	ActionCreateOrder   = "create_order"
	ActionOAuthCallback = "oauth_callback"
)

type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

func (r RateLimitRule) Valid() bool {
	return r.Limit > 0 && r.Window > 0
}

type RateLimitRequest struct {
	Action string
	Actor  string
}

type Decision struct {
	Allowed      bool
	Identifier   string
	AppliedRule  RateLimitRule
	CurrentCount int64
	ResetAt      time.Time
}

// RetryAfter devolve a dica de nova tentativa em segundos inteiros.
func (d Decision) RetryAfter(now time.Time) int {
	return RetryAfterSeconds(d.ResetAt, now)
}

// RetryAfterSeconds arredonda para cima o tempo restante até resetAt, com mínimo de 1.
func RetryAfterSeconds(resetAt, now time.Time) int {
	remaining := resetAt.Sub(now)
	if remaining <= 0 {
		return 1
	}
	seconds := int((remaining + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
