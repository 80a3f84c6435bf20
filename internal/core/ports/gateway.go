package ports

import (
	"context"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type PaymentGateway interface {
	FetchOrder(ctx context.Context, orderID string) (domain.GatewayOrder, error)
	CreateOrder(ctx context.Context, orderID string, amount int64, currency string) (domain.GatewayOrder, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.SettlementEvent) error
}
