package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// DefaultClaimLease é o tempo após o qual uma reivindicação em processing pode ser retomada.
const DefaultClaimLease = 2 * time.Minute

// SettlementConfig agrega as dependências opcionais do motor de conciliação.
type SettlementConfig struct {
	Secret     []byte
	ClaimLease time.Duration
	Plans      domain.PlanCatalog
	Events     ports.EventPublisher
	Clock      ports.Clock
	Metrics    ports.Metrics
}

// SettlementService verifica confirmações de pagamento e conduz a transação
// pela máquina de estados, ativando o benefício no máximo uma vez.
type SettlementService struct {
	ledger       ports.TransactionRepository
	gateway      ports.PaymentGateway
	entitlements ports.EntitlementService
	config       SettlementConfig
}

var _ ports.Settlement = (*SettlementService)(nil)

func NewSettlementService(ledger ports.TransactionRepository, gateway ports.PaymentGateway, entitlements ports.EntitlementService, cfg SettlementConfig) (*SettlementService, error) {
	if ledger == nil {
		return nil, fmt.Errorf("transaction repository is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if entitlements == nil {
		return nil, fmt.Errorf("entitlement service is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("gateway secret is required")
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = DefaultClaimLease
	}
	if cfg.Plans == nil {
		cfg.Plans = domain.DefaultPlans()
	}
	if cfg.Events == nil {
		cfg.Events = ports.NopPublisher{}
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}

	return &SettlementService{ledger: ledger, gateway: gateway, entitlements: entitlements, config: cfg}, nil
}

// VerifyAndSettle conduz uma confirmação de pagamento até paid ou failed.
func (s *SettlementService) VerifyAndSettle(ctx context.Context, req ports.VerifyPaymentRequest) (domain.EntitlementSnapshot, error) {
	started := s.config.Clock.Now()
	snapshot, err := s.verifyAndSettle(ctx, req)

	outcome := "settled"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	s.config.Metrics.ObserveSettlement(outcome, s.config.Clock.Now().Sub(started))

	return snapshot, err
}

func (s *SettlementService) verifyAndSettle(ctx context.Context, req ports.VerifyPaymentRequest) (domain.EntitlementSnapshot, error) {
	orderID := strings.TrimSpace(req.OrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if orderID == "" || paymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "orderId, paymentId and signature are required")
	}

	tx, err := s.ledger.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return domain.EntitlementSnapshot{}, domain.NewError(domain.KindNotFound, "order not found")
		}
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "failed to load order", err)
	}

	if !tx.OwnedBy(req.UserID) {
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindForbidden, "order belongs to another user")
	}

	switch tx.Status {
	case domain.StatusPaid:
		return s.snapshot(ctx, tx.UserID)
	case domain.StatusFailed:
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "order has failed; start a new checkout")
	}

	// A forged confirmation must not move the order anywhere.
	if !VerifyPaymentSignature(s.config.Secret, orderID, paymentID, req.Signature) {
		log.Warn().Str("order_id", orderID).Str("user_id", req.UserID).Msg("payment signature mismatch")
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "invalid payment signature")
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayOrderMissing) {
			return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "order is unknown to the payment gateway")
		}
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "failed to fetch order from payment gateway", err)
	}

	if !order.Matches(tx) {
		log.Error().
			Str("order_id", orderID).
			Int64("ledger_amount", tx.Amount).
			Int64("gateway_amount", order.Amount).
			Str("ledger_currency", tx.Currency).
			Str("gateway_currency", order.Currency).
			Msg("gateway order does not match ledger")
		s.failUnclaimed(ctx, tx, "amount_mismatch")
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "payment amount or currency does not match the order")
	}

	if order.Status != domain.GatewayOrderPaid {
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "payment not completed yet")
	}

	plan, err := s.config.Plans.Lookup(tx.PlanID)
	if err != nil {
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "order references an unknown plan", err)
	}

	claimed, err := s.ledger.ClaimProcessing(ctx, orderID, tx.UserID, s.config.Clock.Now(), s.config.ClaimLease)
	if err != nil {
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "failed to claim order", err)
	}
	if !claimed {
		return s.afterLostClaim(ctx, orderID)
	}
	log.Info().Str("order_id", orderID).Str("user_id", tx.UserID).Msg("order claimed for settlement")

	// The claim is held; commit writes must survive a caller that gave up.
	commitCtx := context.WithoutCancel(ctx)

	activated, err := s.entitlements.Activate(commitCtx, tx.UserID, plan, orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("entitlement activation failed")
		s.fail(commitCtx, tx, "activation_failed")
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "failed to activate entitlement", err)
	}

	if err := s.ledger.MarkPaid(commitCtx, orderID, paymentID, req.Signature, s.config.Clock.Now()); err != nil {
		// Left in processing; the lease lets a later attempt finish the commit.
		log.Error().Err(err).Str("order_id", orderID).Msg("failed to mark order paid")
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "failed to record payment", err)
	}

	tx.Status = domain.StatusPaid
	tx.PaymentID = paymentID
	s.publish(commitCtx, domain.EventPaymentPaid, tx, "")
	log.Info().Str("order_id", orderID).Str("payment_id", paymentID).Str("plan_id", plan.ID).Msg("order settled")

	refreshed, err := s.entitlements.Snapshot(commitCtx, tx.UserID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("failed to refresh entitlement snapshot")
		return activated, nil
	}
	return refreshed, nil
}

// afterLostClaim distingue um pedido já concluído de um ainda em andamento.
func (s *SettlementService) afterLostClaim(ctx context.Context, orderID string) (domain.EntitlementSnapshot, error) {
	current, err := s.ledger.GetByOrderID(ctx, orderID)
	if err == nil && current.Status == domain.StatusPaid {
		return s.snapshot(ctx, current.UserID)
	}
	if err == nil && current.Status == domain.StatusFailed {
		return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "order has failed; start a new checkout")
	}
	return domain.EntitlementSnapshot{}, domain.NewError(domain.KindBadRequest, "payment is being processed; retry shortly")
}

func (s *SettlementService) snapshot(ctx context.Context, userID string) (domain.EntitlementSnapshot, error) {
	snapshot, err := s.entitlements.Snapshot(ctx, userID)
	if err != nil {
		return domain.EntitlementSnapshot{}, domain.WrapError(domain.KindInternal, "failed to load entitlement", err)
	}
	return snapshot, nil
}

// failUnclaimed marca o pedido como falho só depois de obter o claim.
// Um claim vivo de outra chamada fica intocado; o dono decide o estado final.
func (s *SettlementService) failUnclaimed(ctx context.Context, tx domain.Transaction, reason string) {
	claimed, err := s.ledger.ClaimProcessing(ctx, tx.OrderID, tx.UserID, s.config.Clock.Now(), s.config.ClaimLease)
	if err != nil {
		log.Error().Err(err).Str("order_id", tx.OrderID).Str("reason", reason).Msg("failed to claim order before failing it")
		return
	}
	if !claimed {
		log.Warn().Str("order_id", tx.OrderID).Str("reason", reason).Msg("order is claimed by another attempt; not failing it")
		return
	}
	s.fail(context.WithoutCancel(ctx), tx, reason)
}

func (s *SettlementService) fail(ctx context.Context, tx domain.Transaction, reason string) {
	if err := s.ledger.MarkFailed(ctx, tx.OrderID, s.config.Clock.Now()); err != nil {
		log.Error().Err(err).Str("order_id", tx.OrderID).Str("reason", reason).Msg("failed to mark order failed")
		return
	}
	tx.Status = domain.StatusFailed
	s.publish(ctx, domain.EventPaymentFailed, tx, reason)
	log.Warn().Str("order_id", tx.OrderID).Str("reason", reason).Msg("order failed")
}

func (s *SettlementService) publish(ctx context.Context, subject string, tx domain.Transaction, reason string) {
	event := domain.NewSettlementEvent(subject, tx, reason, s.config.Clock.Now())
	if err := s.config.Events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("subject", subject).Str("order_id", tx.OrderID).Msg("failed to publish settlement event")
	}
}
