// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"
)

// CounterStore guarda contadores de janela fixa por chave.
type CounterStore interface {
	// Increment faz uma única mutação atômica em key. Janela ausente ou expirada
	// recomeça em now com contagem 1. Devolve a nova contagem e o instante em que
	// a janela ativa reinicia.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error)
}

// ReplayStore guarda tokens de uso único com o instante em que foram vistos.
type ReplayStore interface {
	Get(ctx context.Context, token string) (time.Time, bool, error)
	// Record guarda token -> seenAt, a menos que o token já exista.
	Record(ctx context.Context, token string, seenAt time.Time, ttl time.Duration) error
	// Prune descarta toda entrada mais antiga que ttl em relação a now.
	Prune(ctx context.Context, now time.Time, ttl time.Duration) error
}
