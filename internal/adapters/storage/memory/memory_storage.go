// Package memory disponibiliza stores em memória para um único processo e para testes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

type window struct {
	count int64
	start time.Time
}

// CounterStore mantém janelas fixas por chave protegidas por um mutex.
type CounterStore struct {
	mu      sync.Mutex
	windows map[string]window
}

var _ ports.CounterStore = (*CounterStore)(nil)

func NewCounterStore() *CounterStore {
	return &CounterStore{windows: make(map[string]window)}
}

func (s *CounterStore) Increment(_ context.Context, key string, length time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= length {
		w = window{start: now}
	}
	w.count++
	s.windows[key] = w

	return w.count, w.start.Add(length), nil
}

// ReplayStore mantém token -> primeiro avistamento.
type ReplayStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

var _ ports.ReplayStore = (*ReplayStore)(nil)

func NewReplayStore() *ReplayStore {
	return &ReplayStore{seen: make(map[string]time.Time)}
}

func (s *ReplayStore) Get(_ context.Context, token string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenAt, ok := s.seen[token]
	return seenAt, ok, nil
}

func (s *ReplayStore) Record(_ context.Context, token string, seenAt time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seen[token]; exists {
		return nil
	}
	s.seen[token] = seenAt
	return nil
}

func (s *ReplayStore) Prune(_ context.Context, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, seenAt := range s.seen {
		if now.Sub(seenAt) >= ttl {
			delete(s.seen, token)
		}
	}
	return nil
}

func (s *ReplayStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
