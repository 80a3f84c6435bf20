package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/storage/memory"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
	"github.com/JeanGrijp/settlement-guard/internal/core/services"
)

type stubSessions struct{}

// Bearer tokens of the form "<role>:<id>" resolve directly to a user.
func (stubSessions) CurrentUser(r *http.Request) (*domain.User, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	role, id, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return &domain.User{ID: id, Role: role}, nil
}

type stubCheckout struct {
	calls []string
	txs   []domain.Transaction
}

func (s *stubCheckout) CreateOrder(_ context.Context, userID, planID string) (domain.Transaction, error) {
	s.calls = append(s.calls, userID+"/"+planID)
	if planID == "platinum" {
		return domain.Transaction{}, domain.NewError(domain.KindBadRequest, "unknown plan")
	}
	return domain.Transaction{OrderID: "order_1", UserID: userID, PlanID: planID, Amount: 49900, Currency: "INR", Status: domain.StatusCreated}, nil
}

func (s *stubCheckout) ListTransactions(_ context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range s.txs {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out, nil
}

type stubSettlement struct {
	requests []ports.VerifyPaymentRequest
	err      error
}

func (s *stubSettlement) VerifyAndSettle(_ context.Context, req ports.VerifyPaymentRequest) (domain.EntitlementSnapshot, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return domain.EntitlementSnapshot{}, s.err
	}
	return domain.EntitlementSnapshot{UserID: req.UserID, PlanID: "pro-monthly", Active: true}, nil
}

type stubEntitlements struct{}

func (stubEntitlements) Activate(context.Context, string, domain.Plan, string) (domain.EntitlementSnapshot, error) {
	return domain.EntitlementSnapshot{}, errors.New("not used")
}

func (stubEntitlements) Snapshot(_ context.Context, userID string) (domain.EntitlementSnapshot, error) {
	return domain.EntitlementSnapshot{UserID: userID, Credits: 5, Active: true}, nil
}

type stubGuests struct{}

func (stubGuests) IssueGuest() (domain.User, string, time.Time, error) {
	return domain.User{ID: "guest_1", Role: domain.RoleGuest}, "guest-token", time.Now().Add(time.Hour), nil
}

type countingCompleter struct {
	mu     sync.Mutex
	calls  int
	target string
}

func (c *countingCompleter) Complete(_ context.Context, code, state string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if code == "bad" {
		return "", errors.New("provider rejected code")
	}
	if c.target != "" {
		return c.target, nil
	}
	return "/welcome", nil
}

type testServer struct {
	handler    http.Handler
	checkout   *stubCheckout
	settlement *stubSettlement
	completer  *countingCompleter
}

func newTestServer(t *testing.T, rules map[string]domain.RateLimitRule) *testServer {
	t.Helper()

	limiter, err := services.NewRateLimiterService(memory.NewCounterStore(), services.Config{
		DefaultRule: domain.RateLimitRule{Limit: 100, Window: time.Minute},
		Rules:       rules,
	})
	require.NoError(t, err)

	guard, err := services.NewReplayGuardService(memory.NewReplayStore(), services.ReplayConfig{})
	require.NoError(t, err)

	ts := &testServer{
		checkout:   &stubCheckout{},
		settlement: &stubSettlement{},
		completer:  &countingCompleter{},
	}
	ts.handler = NewRouter(RouterConfig{
		Limiter:   limiter,
		Sessions:  stubSessions{},
		Payments:  NewPaymentsHandler(ts.checkout, ts.settlement),
		Accounts:  NewAccountHandler(stubGuests{}, stubEntitlements{}, nil),
		Admin:     NewAdminHandler(ts.checkout),
		RateLimit: NewRateLimitHandler(limiter, nil),
		OAuth:     NewOAuthHandler(guard, limiter, ts.completer, "/welcome"),
		Health:    HealthHandler(map[string]HealthCheck{"ledger": func(context.Context) error { return nil }}),
	})
	return ts
}

func (ts *testServer) do(method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "198.51.100.9:4000"
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestVerify_PassesCallerAndReturnsEntitlement(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/payments/verify", "user:user-1", `{"orderId":"order_1","paymentId":"pay_1","signature":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "user-1", body["entitlement"].(map[string]any)["userId"])
	require.Len(t, ts.settlement.requests, 1)
	assert.Equal(t, ports.VerifyPaymentRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: "abc", UserID: "user-1"}, ts.settlement.requests[0])
}

func TestVerify_ErrorKindsMapToStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := map[domain.Kind]int{
		domain.KindNotFound:   http.StatusNotFound,
		domain.KindForbidden:  http.StatusForbidden,
		domain.KindBadRequest: http.StatusBadRequest,
		domain.KindInternal:   http.StatusInternalServerError,
	}
	for kind, status := range cases {
		ts.settlement.err = domain.NewError(kind, "nope")
		rec := ts.do(http.MethodPost, "/api/payments/verify", "user:user-1", `{"orderId":"o","paymentId":"p","signature":"s"}`)
		assert.Equal(t, status, rec.Code, "kind %s", kind)
		assert.Equal(t, string(kind), decodeBody(t, rec)["error"])
	}
}

func TestVerify_RequiresSessionAndValidBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/payments/verify", "", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/payments/verify", "user:user-1", `not-json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.settlement.requests)
}

func TestVerify_RateLimitedPerUser(t *testing.T) {
	ts := newTestServer(t, map[string]domain.RateLimitRule{
		domain.ActionVerifyPayment: {Limit: 2, Window: time.Minute},
	})
	body := `{"orderId":"o","paymentId":"p","signature":"s"}`

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/payments/verify", "user:user-1", body).Code)
	}
	rec := ts.do(http.MethodPost, "/api/payments/verify", "user:user-1", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Len(t, ts.settlement.requests, 2)

	// Another user has their own window.
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/payments/verify", "user:user-2", body).Code)
}

func TestCreateOrder(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/payments/orders", "user:user-1", `{"planId":"pro-monthly"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "order_1", body["orderId"])
	assert.Equal(t, float64(49900), body["amount"])
	assert.Equal(t, []string{"user-1/pro-monthly"}, ts.checkout.calls)

	rec = ts.do(http.MethodPost, "/api/payments/orders", "user:user-1", `{"planId":"platinum"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitCheck(t *testing.T) {
	ts := newTestServer(t, map[string]domain.RateLimitRule{
		"export": {Limit: 3, Window: time.Minute},
	})

	var codes []int
	for i := 0; i < 4; i++ {
		codes = append(codes, ts.do(http.MethodGet, "/api/ratelimit/check?action=export", "", "").Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429}, codes)

	rec := ts.do(http.MethodGet, "/api/ratelimit/check?action=export", "", "")
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["allowed"])
	assert.NotEmpty(t, body["resetAt"])

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/ratelimit/check", "", "").Code)
}

func TestAccountEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/auth/guest", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "guest-token", decodeBody(t, rec)["token"])
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, "session", rec.Result().Cookies()[0].Name)

	rec = ts.do(http.MethodGet, "/api/status", "", "")
	assert.Equal(t, false, decodeBody(t, rec)["authenticated"])

	rec = ts.do(http.MethodGet, "/api/status", "user:user-1", "")
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, float64(5), body["entitlement"].(map[string]any)["credits"])

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/presence/heartbeat", "", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/presence/heartbeat", "guest:guest_1", "").Code)
}

func TestAdminTransactions(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.checkout.txs = []domain.Transaction{
		{OrderID: "a", UserID: "u1", Status: domain.StatusPaid, PaymentID: "pay_a"},
		{OrderID: "b", UserID: "u2", Status: domain.StatusFailed},
	}

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/transactions", "user:u1", "").Code)

	rec := ts.do(http.MethodGet, "/api/admin/transactions?status=failed", "admin:root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody(t, rec)["transactions"].([]any)
	require.Len(t, listed, 1)
	assert.Equal(t, "b", listed[0].(map[string]any)["orderId"])

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/admin/transactions?limit=x", "admin:root", "").Code)
}

func TestOAuthCallback_ReplayReusesRedirect(t *testing.T) {
	ts := newTestServer(t, nil)

	first := ts.do(http.MethodGet, "/auth/callback?code=abc&state=xyz", "", "")
	require.Equal(t, http.StatusFound, first.Code)
	assert.Equal(t, "/welcome", first.Header().Get("Location"))

	var cookie *http.Cookie
	for _, c := range first.Result().Cookies() {
		if c.Name == CallbackCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, 60, cookie.MaxAge)
	assert.Equal(t, codeDigest("abc"), cookie.Value)

	// Same code without the cookie hits the server-side guard.
	second := ts.do(http.MethodGet, "/auth/callback?code=abc&state=xyz", "", "")
	assert.Equal(t, http.StatusFound, second.Code)
	assert.Equal(t, "/welcome", second.Header().Get("Location"))

	// Same code with the cookie is short-circuited.
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
	req.AddCookie(cookie)
	third := httptest.NewRecorder()
	ts.handler.ServeHTTP(third, req)
	assert.Equal(t, http.StatusFound, third.Code)

	assert.Equal(t, 1, ts.completer.calls)
}

func TestOAuthCallback_ReplayIsNotRateLimited(t *testing.T) {
	ts := newTestServer(t, map[string]domain.RateLimitRule{
		domain.ActionOAuthCallback: {Limit: 1, Window: time.Minute},
	})

	first := ts.do(http.MethodGet, "/auth/callback?code=abc&state=xyz", "", "")
	require.Equal(t, http.StatusFound, first.Code)

	second := ts.do(http.MethodGet, "/auth/callback?code=abc&state=xyz", "", "")
	assert.Equal(t, http.StatusFound, second.Code, second.Body.String())
	assert.Equal(t, "/welcome", second.Header().Get("Location"))

	// A new code is a new delivery and counts against the window.
	third := ts.do(http.MethodGet, "/auth/callback?code=def&state=xyz", "", "")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))
	assert.Equal(t, 1, ts.completer.calls)
}

func TestOAuthCallback_ReplayUsesSuccessURL(t *testing.T) {
	guard, err := services.NewReplayGuardService(memory.NewReplayStore(), services.ReplayConfig{})
	require.NoError(t, err)
	completer := &countingCompleter{target: "/first-login"}
	h := NewOAuthHandler(guard, nil, completer, "/welcome")

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil))
	assert.Equal(t, "/first-login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/welcome", rec.Header().Get("Location"))
}

func TestOAuthCallback_Failures(t *testing.T) {
	ts := newTestServer(t, nil)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/auth/callback?state=xyz", "", "").Code)

	rec := ts.do(http.MethodGet, "/auth/callback?code=bad&state=xyz", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A failed completion is not recorded, so a retry reaches the completer again.
	ts.do(http.MethodGet, "/auth/callback?code=bad&state=xyz", "", "")
	assert.Equal(t, 2, ts.completer.calls)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := HealthHandler(map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("down") }})
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
