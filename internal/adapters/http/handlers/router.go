package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	httpMiddleware "github.com/JeanGrijp/settlement-guard/internal/adapters/http/middleware"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

type RouterConfig struct {
	Limiter   ports.RateLimiter
	Sessions  ports.SessionService
	Payments  *PaymentsHandler
	Accounts  *AccountHandler
	Admin     *AdminHandler
	RateLimit *RateLimitHandler
	OAuth     *OAuthHandler
	Health    http.Handler
	Metrics   http.Handler
}

// NewRouter monta as rotas da API com sessão e limite de taxa por ação.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(httpMiddleware.NewSessionMiddleware(cfg.Sessions))

	limit := func(action string) func(http.Handler) http.Handler {
		return httpMiddleware.NewRateLimiterMiddleware(cfg.Limiter, action)
	}

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/healthz", cfg.Health)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.OAuth != nil {
		r.Get("/auth/callback", cfg.OAuth.Callback)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimit != nil {
			api.Get("/ratelimit/check", cfg.RateLimit.Check)
		}
		if cfg.Accounts != nil {
			api.With(limit(domain.ActionGuestSignIn)).Post("/auth/guest", cfg.Accounts.GuestSignIn)
			api.With(limit(domain.ActionStatus)).Get("/status", cfg.Accounts.Status)
			api.With(httpMiddleware.RequireUser, limit(domain.ActionPresence)).Post("/presence/heartbeat", cfg.Accounts.Heartbeat)
		}
		if cfg.Payments != nil {
			api.With(httpMiddleware.RequireUser, limit(domain.ActionCreateOrder)).Post("/payments/orders", cfg.Payments.CreateOrder)
			api.With(httpMiddleware.RequireUser, limit(domain.ActionVerifyPayment)).Post("/payments/verify", cfg.Payments.Verify)
		}
		if cfg.Admin != nil {
			api.With(httpMiddleware.RequireAdmin, limit(domain.ActionAdminList)).Get("/admin/transactions", cfg.Admin.ListTransactions)
		}
	})

	return r
}
