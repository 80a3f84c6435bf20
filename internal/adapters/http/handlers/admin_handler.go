package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type TransactionLister interface {
	ListTransactions(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error)
}

type AdminHandler struct {
	transactions TransactionLister
}

func NewAdminHandler(transactions TransactionLister) *AdminHandler {
	return &AdminHandler{transactions: transactions}
}

type transactionResponse struct {
	orderResponse
	UserID    string `json:"userId"`
	PaymentID string `json:"paymentId,omitempty"`
}

// ListTransactions atende GET /api/admin/transactions?status=&limit=.
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status := domain.TransactionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusPaid
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(w, domain.NewError(domain.KindBadRequest, "limit must be a number"))
			return
		}
		limit = parsed
	}

	txs, err := h.transactions.ListTransactions(r.Context(), status, limit)
	if err != nil {
		respond.Error(w, err)
		return
	}

	body := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		body = append(body, transactionResponse{orderResponse: newOrderResponse(tx), UserID: tx.UserID, PaymentID: tx.PaymentID})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"transactions": body})
}
