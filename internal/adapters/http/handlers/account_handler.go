package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/session"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// GuestIssuer emite sessões para visitantes anônimos.
type GuestIssuer interface {
	IssueGuest() (domain.User, string, time.Time, error)
}

// AccountHandler serve os endpoints de sessão, presença e status.
type AccountHandler struct {
	guests       GuestIssuer
	entitlements ports.EntitlementService
	clock        ports.Clock
}

func NewAccountHandler(guests GuestIssuer, entitlements ports.EntitlementService, clock ports.Clock) *AccountHandler {
	if clock == nil {
		clock = ports.SystemClock
	}
	return &AccountHandler{guests: guests, entitlements: entitlements, clock: clock}
}

type guestResponse struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AccountHandler) GuestSignIn(w http.ResponseWriter, r *http.Request) {
	user, token, expiresAt, err := h.guests.IssueGuest()
	if err != nil {
		respond.Error(w, domain.WrapError(domain.KindInternal, "failed to start guest session", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info().Str("user_id", user.ID).Msg("guest session issued")
	respond.JSON(w, http.StatusCreated, guestResponse{UserID: user.ID, Token: token, ExpiresAt: expiresAt})
}

type heartbeatResponse struct {
	OK     bool      `json:"ok"`
	SeenAt time.Time `json:"seenAt"`
}

func (h *AccountHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, heartbeatResponse{OK: true, SeenAt: h.clock.Now().UTC()})
}

type statusResponse struct {
	Authenticated bool                        `json:"authenticated"`
	UserID        string                      `json:"userId,omitempty"`
	Role          string                      `json:"role,omitempty"`
	Entitlement   *domain.EntitlementSnapshot `json:"entitlement,omitempty"`
}

func (h *AccountHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := session.UserFrom(r.Context())
	if user == nil {
		respond.JSON(w, http.StatusOK, statusResponse{})
		return
	}

	snapshot, err := h.entitlements.Snapshot(r.Context(), user.ID)
	if err != nil {
		respond.Error(w, domain.WrapError(domain.KindInternal, "failed to load entitlement", err))
		return
	}
	respond.JSON(w, http.StatusOK, statusResponse{Authenticated: true, UserID: user.ID, Role: user.Role, Entitlement: &snapshot})
}
