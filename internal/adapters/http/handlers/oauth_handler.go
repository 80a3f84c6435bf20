package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	httpMiddleware "github.com/JeanGrijp/settlement-guard/internal/adapters/http/middleware"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// CallbackCookieName guarda o digest do último código de autorização concluído.
const CallbackCookieName = "oauth_cb"

// OAuthHandler finaliza o login uma única vez por código de autorização.
// Entregas repetidas do mesmo código recebem de novo o redirecionamento de sucesso
// e não consomem o limite de taxa; só entregas novas são admitidas pelo limiter.
type OAuthHandler struct {
	guard      ports.ReplayGuard
	limiter    ports.RateLimiter
	completer  ports.LoginCompleter
	successURL string
}

func NewOAuthHandler(guard ports.ReplayGuard, limiter ports.RateLimiter, completer ports.LoginCompleter, successURL string) *OAuthHandler {
	if successURL == "" {
		successURL = "/"
	}
	return &OAuthHandler{guard: guard, limiter: limiter, completer: completer, successURL: successURL}
}

func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if code == "" || state == "" {
		respond.Error(w, domain.NewError(domain.KindBadRequest, "code and state are required"))
		return
	}

	digest := codeDigest(code)
	if cookie, err := r.Cookie(CallbackCookieName); err == nil &&
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(digest)) == 1 {
		log.Debug().Msg("oauth callback replay short-circuited by cookie")
		http.Redirect(w, r, h.successURL, http.StatusFound)
		return
	}

	seen, err := h.guard.Seen(r.Context(), code)
	if err != nil {
		respond.Error(w, domain.WrapError(domain.KindInternal, "failed to check callback", err))
		return
	}
	if seen {
		log.Info().Msg("oauth callback replay detected")
		http.Redirect(w, r, h.successURL, http.StatusFound)
		return
	}

	if h.limiter != nil {
		req := domain.RateLimitRequest{Action: domain.ActionOAuthCallback, Actor: httpMiddleware.Actor(r)}
		if _, err := h.limiter.Allow(r.Context(), req); err != nil {
			respond.Error(w, err)
			return
		}
	}

	target, err := h.completer.Complete(r.Context(), code, state)
	if err != nil {
		log.Warn().Err(err).Msg("oauth login failed")
		respond.Error(w, domain.NewError(domain.KindBadRequest, "login could not be completed"))
		return
	}

	if err := h.guard.Record(r.Context(), code); err != nil {
		log.Error().Err(err).Msg("failed to record oauth callback")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CallbackCookieName,
		Value:    digest,
		Path:     "/auth",
		MaxAge:   int(h.guard.TTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

func codeDigest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
