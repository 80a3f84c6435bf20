package domain

import "time"

type TransactionStatus string

const (
	StatusCreated    TransactionStatus = "created"
	StatusProcessing TransactionStatus = "processing"
	StatusPaid       TransactionStatus = "paid"
	StatusFailed     TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusPaid, StatusFailed:
		return true
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// CanTransitionTo codifica created -> processing -> {paid, failed}. Um pedido
// created também pode falhar direto quando a conciliação o rejeita.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case StatusCreated:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusPaid || next == StatusFailed
	}
	return false
}

// Transaction é o registro durável de um pedido de pagamento.
type Transaction struct {
	OrderID   string
	UserID    string
	PlanID    string
	Amount    int64
	Currency  string
	Status    TransactionStatus
	PaymentID string
	Signature string
	ClaimedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Transaction) OwnedBy(userID string) bool {
	return t.UserID != "" && t.UserID == userID
}
