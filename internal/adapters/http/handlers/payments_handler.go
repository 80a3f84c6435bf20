package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/session"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

const maxBodyBytes = 1 << 16

type PaymentsHandler struct {
	checkout   ports.Checkout
	settlement ports.Settlement
}

func NewPaymentsHandler(checkout ports.Checkout, settlement ports.Settlement) *PaymentsHandler {
	return &PaymentsHandler{checkout: checkout, settlement: settlement}
}

type createOrderRequest struct {
	PlanID string `json:"planId"`
}

type orderResponse struct {
	OrderID   string    `json:"orderId"`
	PlanID    string    `json:"planId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func newOrderResponse(tx domain.Transaction) orderResponse {
	return orderResponse{
		OrderID:   tx.OrderID,
		PlanID:    tx.PlanID,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Status:    string(tx.Status),
		CreatedAt: tx.CreatedAt,
	}
}

func (h *PaymentsHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	tx, err := h.checkout.CreateOrder(r.Context(), userID(r), req.PlanID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, newOrderResponse(tx))
}

type verifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	OK          bool                       `json:"ok"`
	Entitlement domain.EntitlementSnapshot `json:"entitlement"`
}

func (h *PaymentsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, err)
		return
	}

	snapshot, err := h.settlement.VerifyAndSettle(r.Context(), ports.VerifyPaymentRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		UserID:    userID(r),
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, verifyResponse{OK: true, Entitlement: snapshot})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return domain.NewError(domain.KindBadRequest, "invalid JSON body")
	}
	return nil
}

func userID(r *http.Request) string {
	if user := session.UserFrom(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
