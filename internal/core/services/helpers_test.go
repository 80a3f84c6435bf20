package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMetrics struct {
	mu          sync.Mutex
	rateLimits  map[string][]bool
	replayHits  int
	settlements map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rateLimits: make(map[string][]bool), settlements: make(map[string]int)}
}

func (m *recordingMetrics) ObserveRateLimit(action string, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimits[action] = append(m.rateLimits[action], allowed)
}

func (m *recordingMetrics) ObserveReplay(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.replayHits++
	}
}

func (m *recordingMetrics) ObserveSettlement(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[outcome]++
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SettlementEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

func asDomainError(err error, target **domain.Error) bool {
	return errors.As(err, target)
}
