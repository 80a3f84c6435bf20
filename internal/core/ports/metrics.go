package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type Metrics interface {
	ObserveRateLimit(action string, allowed bool)
	ObserveReplay(hit bool)
	ObserveSettlement(outcome string, duration time.Duration)
}

// NopMetrics descarta todas as observações.
type NopMetrics struct{}

func (NopMetrics) ObserveRateLimit(string, bool) {}
func (NopMetrics) ObserveReplay(bool) {}
func (NopMetrics) ObserveSettlement(string, time.Duration) {}

// NopPublisher descarta eventos quando nenhum broker está configurado.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.SettlementEvent) error { return nil }
