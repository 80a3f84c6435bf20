package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

// TransactionRepository é o dono exclusivo dos registros de transação.
type TransactionRepository interface {
	Create(ctx context.Context, tx domain.Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (domain.Transaction, error)
	// ClaimProcessing move o pedido para processing num único update condicional.
	// Só tem sucesso a partir de created ou de um claim em processing mais antigo que lease.
	ClaimProcessing(ctx context.Context, orderID, userID string, now time.Time, lease time.Duration) (bool, error)
	MarkPaid(ctx context.Context, orderID, paymentID, signature string, now time.Time) error
	MarkFailed(ctx context.Context, orderID string, now time.Time) error
	ListByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error)
}

type EntitlementService interface {
	// Activate concede plan a userID. Ativar de novo o mesmo pedido não tem efeito.
	Activate(ctx context.Context, userID string, plan domain.Plan, orderID string) (domain.EntitlementSnapshot, error)
	Snapshot(ctx context.Context, userID string) (domain.EntitlementSnapshot, error)
}
