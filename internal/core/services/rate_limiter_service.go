package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// Config agrega os limites utilizados pelo serviço de rate limiting.
type Config struct {
	DefaultRule domain.RateLimitRule
	Rules       map[string]domain.RateLimitRule
	Clock       ports.Clock
	Metrics     ports.Metrics
}

// RateLimiterService implementa janelas fixas por (ação, ator).
type RateLimiterService struct {
	storage ports.CounterStore
	config  Config
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.CounterStore, cfg Config) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if !cfg.DefaultRule.Valid() {
		return nil, fmt.Errorf("default rule must have positive values")
	}
	for action, rule := range cfg.Rules {
		if !rule.Valid() {
			return nil, fmt.Errorf("rule for action %q must have positive values", action)
		}
	}
	if cfg.Rules == nil {
		cfg.Rules = make(map[string]domain.RateLimitRule)
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}

	return &RateLimiterService{storage: storage, config: cfg}, nil
}

// Admit conta uma requisição para key e decide se ela cabe na janela ativa.
// Chave vazia ou regra não positiva é erro de programação e causa panic.
func (s *RateLimiterService) Admit(ctx context.Context, key string, rule domain.RateLimitRule) (domain.Decision, error) {
	if strings.TrimSpace(key) == "" {
		panic("ratelimit: empty key")
	}
	if !rule.Valid() {
		panic(fmt.Sprintf("ratelimit: invalid rule for %q: limit=%d window=%s", key, rule.Limit, rule.Window))
	}

	count, resetAt, err := s.storage.Increment(ctx, key, rule.Window, s.config.Clock.Now())
	if err != nil {
		return domain.Decision{}, fmt.Errorf("increment %s: %w", key, err)
	}

	return domain.Decision{
		Allowed:      count <= int64(rule.Limit),
		Identifier:   key,
		AppliedRule:  rule,
		CurrentCount: count,
		ResetAt:      resetAt,
	}, nil
}

// Allow avalia a requisição contra a regra configurada para a ação.
// Uma requisição negada devolve a decisão junto com um erro rate_limited.
func (s *RateLimiterService) Allow(ctx context.Context, req domain.RateLimitRequest) (domain.Decision, error) {
	action := strings.TrimSpace(req.Action)
	actor := strings.ToLower(strings.TrimSpace(req.Actor))
	if action == "" || actor == "" {
		return domain.Decision{}, domain.NewError(domain.KindBadRequest, "action and actor are required")
	}

	rule := s.resolveRule(action)
	decision, err := s.Admit(ctx, BuildKey(action, actor), rule)
	if err != nil {
		return domain.Decision{}, err
	}
	s.config.Metrics.ObserveRateLimit(action, decision.Allowed)

	if !decision.Allowed {
		log.Debug().
			Str("action", action).
			Str("actor", actor).
			Int64("count", decision.CurrentCount).
			Time("reset_at", decision.ResetAt).
			Msg("rate limit exceeded")
		return decision, domain.RateLimited(decision.RetryAfter(s.config.Clock.Now()))
	}

	return decision, nil
}

// Rule devolve a regra aplicada à ação.
func (s *RateLimiterService) Rule(action string) domain.RateLimitRule {
	return s.resolveRule(strings.TrimSpace(action))
}

func (s *RateLimiterService) resolveRule(action string) domain.RateLimitRule {
	if rule, ok := s.config.Rules[action]; ok {
		return rule
	}
	return s.config.DefaultRule
}

// BuildKey compõe a chave do contador a partir da ação e do ator.
func BuildKey(action, actor string) string {
	return fmt.Sprintf("ratelimit:%s:%s", strings.TrimSpace(action), strings.ToLower(strings.TrimSpace(actor)))
}
