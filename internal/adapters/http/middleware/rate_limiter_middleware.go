// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/session"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// NewRateLimiterMiddleware admite cada requisição contra a regra da ação.
// O ator é o usuário da sessão quando existir, senão o IP do cliente.
func NewRateLimiterMiddleware(limiter ports.RateLimiter, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			_, err := limiter.Allow(r.Context(), domain.RateLimitRequest{Action: action, Actor: Actor(r)})
			if err != nil {
				respond.Error(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Actor identifica contra quem a requisição é contada.
func Actor(r *http.Request) string {
	if user := session.UserFrom(r.Context()); user != nil && user.ID != "" {
		return "user:" + user.ID
	}
	return "ip:" + ClientIP(r)
}

func ClientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" {
		return xRealIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}
