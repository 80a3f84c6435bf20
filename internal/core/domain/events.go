package domain

import "time"

const (
	EventPaymentPaid   = "payments.paid"
	EventPaymentFailed = "payments.failed"
)

type SettlementEvent struct {
	Subject    string            `json:"-"`
	OrderID    string            `json:"orderId"`
	UserID     string            `json:"userId"`
	PlanID     string            `json:"planId"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Status     TransactionStatus `json:"status"`
	PaymentID  string            `json:"paymentId,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

func NewSettlementEvent(subject string, tx Transaction, reason string, at time.Time) SettlementEvent {
	return SettlementEvent{
		Subject:    subject,
		OrderID:    tx.OrderID,
		UserID:     tx.UserID,
		PlanID:     tx.PlanID,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Status:     tx.Status,
		PaymentID:  tx.PaymentID,
		Reason:     reason,
		OccurredAt: at,
	}
}
