// Package events publica eventos de liquidação no NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
}

type Publisher struct {
	conn  conn
	close func()
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Connect conecta ao servidor NATS em url.
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("settlement-guard"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: nc, close: nc.Close}, nil
}

func newPublisher(c conn) *Publisher {
	return &Publisher{conn: c, close: func() {}}
}

func (p *Publisher) Publish(ctx context.Context, event domain.SettlementEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Subject == "" {
		return fmt.Errorf("event for order %s has no subject", event.OrderID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(event.Subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", event.Subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.close()
}
