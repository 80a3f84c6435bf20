package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/middleware"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// RateLimitHandler permite ao cliente consumir uma admissão para uma ação qualquer.
type RateLimitHandler struct {
	limiter ports.RateLimiter
	clock   ports.Clock
}

func NewRateLimitHandler(limiter ports.RateLimiter, clock ports.Clock) *RateLimitHandler {
	if clock == nil {
		clock = ports.SystemClock
	}
	return &RateLimitHandler{limiter: limiter, clock: clock}
}

type checkResponse struct {
	Allowed    bool      `json:"allowed"`
	ResetAt    time.Time `json:"resetAt"`
	RetryAfter int       `json:"retryAfter,omitempty"`
}

func (h *RateLimitHandler) Check(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	if action == "" {
		respond.Error(w, domain.NewError(domain.KindBadRequest, "action is required"))
		return
	}

	decision, err := h.limiter.Allow(r.Context(), domain.RateLimitRequest{Action: action, Actor: middleware.Actor(r)})
	if err != nil && !domain.IsBlockedError(err) {
		respond.Error(w, err)
		return
	}

	if !decision.Allowed {
		retryAfter := decision.RetryAfter(h.clock.Now())
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respond.JSON(w, http.StatusTooManyRequests, checkResponse{ResetAt: decision.ResetAt, RetryAfter: retryAfter})
		return
	}
	respond.JSON(w, http.StatusOK, checkResponse{Allowed: true, ResetAt: decision.ResetAt})
}
