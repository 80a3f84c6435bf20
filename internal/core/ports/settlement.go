package ports

import (
	"context"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type VerifyPaymentRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	UserID    string
}

type Settlement interface {
	VerifyAndSettle(ctx context.Context, req VerifyPaymentRequest) (domain.EntitlementSnapshot, error)
}

type Checkout interface {
	CreateOrder(ctx context.Context, userID, planID string) (domain.Transaction, error)
}
