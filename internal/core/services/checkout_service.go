package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// CheckoutService abre pedidos precificados pelo catálogo de planos.
type CheckoutService struct {
	ledger  ports.TransactionRepository
	gateway ports.PaymentGateway
	plans   domain.PlanCatalog
	clock   ports.Clock
	newID   func() string
}

var _ ports.Checkout = (*CheckoutService)(nil)

func NewCheckoutService(ledger ports.TransactionRepository, gateway ports.PaymentGateway, plans domain.PlanCatalog, clock ports.Clock) (*CheckoutService, error) {
	if ledger == nil || gateway == nil {
		return nil, fmt.Errorf("ledger and gateway are required")
	}
	if plans == nil {
		plans = domain.DefaultPlans()
	}
	if clock == nil {
		clock = ports.SystemClock
	}
	return &CheckoutService{
		ledger:  ledger,
		gateway: gateway,
		plans:   plans,
		clock:   clock,
		newID:   func() string { return "order_" + uuid.NewString() },
	}, nil
}

// CreateOrder registra o pedido no gateway e só então o persiste como created.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID, planID string) (domain.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Transaction{}, domain.NewError(domain.KindForbidden, "a signed-in user is required")
	}
	plan, err := s.plans.Lookup(strings.TrimSpace(planID))
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			return domain.Transaction{}, domain.NewError(domain.KindBadRequest, "unknown plan")
		}
		return domain.Transaction{}, domain.WrapError(domain.KindInternal, "failed to load plan", err)
	}

	orderID := s.newID()
	if _, err := s.gateway.CreateOrder(ctx, orderID, plan.Amount, plan.Currency); err != nil {
		return domain.Transaction{}, domain.WrapError(domain.KindInternal, "failed to create gateway order", err)
	}

	now := s.clock.Now()
	tx := domain.Transaction{
		OrderID:   orderID,
		UserID:    userID,
		PlanID:    plan.ID,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.Create(ctx, tx); err != nil {
		return domain.Transaction{}, domain.WrapError(domain.KindInternal, "failed to record order", err)
	}

	log.Info().Str("order_id", orderID).Str("user_id", userID).Str("plan_id", plan.ID).Int64("amount", plan.Amount).Msg("order created")
	return tx, nil
}

// ListTransactions devolve os registros do ledger em status, do mais recente ao mais antigo.
func (s *CheckoutService) ListTransactions(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	if !status.Valid() {
		return nil, domain.NewError(domain.KindBadRequest, "unknown status")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txs, err := s.ledger.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to list transactions", err)
	}
	return txs, nil
}
