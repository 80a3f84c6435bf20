package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// DefaultReplayTTL é a janela de deduplicação de callbacks externos.
const DefaultReplayTTL = 60 * time.Second

type ReplayConfig struct {
	TTL     time.Duration
	Clock   ports.Clock
	Metrics ports.Metrics
}

// ReplayGuardService deduplica entregas repetidas de um mesmo token dentro da janela.
type ReplayGuardService struct {
	store   ports.ReplayStore
	ttl     time.Duration
	clock   ports.Clock
	metrics ports.Metrics
}

var _ ports.ReplayGuard = (*ReplayGuardService)(nil)

func NewReplayGuardService(store ports.ReplayStore, cfg ReplayConfig) (*ReplayGuardService, error) {
	if store == nil {
		return nil, fmt.Errorf("replay store is required")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("replay ttl must be positive")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultReplayTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	return &ReplayGuardService{store: store, ttl: cfg.TTL, clock: cfg.Clock, metrics: cfg.Metrics}, nil
}

func (g *ReplayGuardService) TTL() time.Duration {
	return g.ttl
}

func (g *ReplayGuardService) Seen(ctx context.Context, token string) (bool, error) {
	return g.SeenAt(ctx, token, g.clock.Now())
}

// SeenAt remove entradas expiradas e informa se token foi visto pela primeira vez
// há menos de TTL antes de now. Token vazio nunca é considerado replay.
func (g *ReplayGuardService) SeenAt(ctx context.Context, token string, now time.Time) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if err := g.store.Prune(ctx, now, g.ttl); err != nil {
		return false, fmt.Errorf("prune replay entries: %w", err)
	}

	firstSeen, ok, err := g.store.Get(ctx, token)
	if err != nil {
		return false, fmt.Errorf("load replay entry: %w", err)
	}
	seen := ok && now.Sub(firstSeen) < g.ttl
	g.metrics.ObserveReplay(seen)
	return seen, nil
}

func (g *ReplayGuardService) Record(ctx context.Context, token string) error {
	return g.RecordAt(ctx, token, g.clock.Now())
}

func (g *ReplayGuardService) RecordAt(ctx context.Context, token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := g.store.Prune(ctx, now, g.ttl); err != nil {
		return fmt.Errorf("prune replay entries: %w", err)
	}
	if err := g.store.Record(ctx, token, now, g.ttl); err != nil {
		return fmt.Errorf("record replay entry: %w", err)
	}
	return nil
}
