package middleware

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/session"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// NewSessionMiddleware resolve o chamador e o guarda no contexto da requisição.
// Requisições sem sessão válida seguem como anônimas.
func NewSessionMiddleware(sessions ports.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := sessions.CurrentUser(r)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					log.Warn().Err(err).Msg("session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithUser(r.Context(), user)))
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.UserFrom(r.Context()) == nil {
			respond.Error(w, domain.NewError(domain.KindForbidden, "sign in required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.UserFrom(r.Context()).IsAdmin() {
			respond.Error(w, domain.NewError(domain.KindForbidden, "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
