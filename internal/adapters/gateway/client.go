// Package gateway implementa o cliente HTTP do gateway de pagamentos.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// ErrUnavailable é devolvido enquanto o circuit breaker está aberto.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	fetches singleflight.Group
}

var _ ports.PaymentGateway = (*Client)(nil)

// orderPayload is the gateway's wire representation of an order.
type orderPayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status,omitempty"`
}

func (p orderPayload) toDomain() domain.GatewayOrder {
	return domain.GatewayOrder{
		ID:       p.ID,
		Amount:   p.Amount,
		Currency: p.Currency,
		Status:   domain.GatewayOrderStatus(p.Status),
	}
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.KeyID != "" {
		httpClient.SetBasicAuth(cfg.KeyID, cfg.KeySecret)
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// A missing order is an answer and a caller abort is not the gateway's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrGatewayOrderMissing) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("gateway circuit changed state")
		},
	}

	return &Client{http: httpClient, breaker: gobreaker.NewCircuitBreaker(settings)}, nil
}

// FetchOrder lê o pedido autoritativo. Buscas concorrentes do mesmo pedido compartilham uma requisição.
// A requisição compartilhada não herda o cancelamento de nenhum chamador e é limitada pelo timeout
// do cliente; cada chamador para de esperar quando o próprio ctx termina.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (domain.GatewayOrder, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(orderID, func() (interface{}, error) {
		return c.execute(func() (interface{}, error) {
			return c.fetchOrder(shared, orderID)
		})
	})

	select {
	case <-ctx.Done():
		return domain.GatewayOrder{}, fmt.Errorf("fetch gateway order %s: %w", orderID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.GatewayOrder{}, res.Err
		}
		if res.Shared {
			log.Debug().Str("order_id", orderID).Msg("gateway fetch shared")
		}
		return res.Val.(domain.GatewayOrder), nil
	}
}

func (c *Client) fetchOrder(ctx context.Context, orderID string) (domain.GatewayOrder, error) {
	var payload orderPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("orderID", orderID).
		SetResult(&payload).
		Get("/orders/{orderID}")
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("fetch gateway order %s: %w", orderID, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return domain.GatewayOrder{}, domain.ErrGatewayOrderMissing
	case resp.IsError():
		return domain.GatewayOrder{}, fmt.Errorf("fetch gateway order %s: status %d", orderID, resp.StatusCode())
	}
	if payload.ID == "" {
		payload.ID = orderID
	}
	return payload.toDomain(), nil
}

func (c *Client) CreateOrder(ctx context.Context, orderID string, amount int64, currency string) (domain.GatewayOrder, error) {
	result, err := c.execute(func() (interface{}, error) {
		var payload orderPayload
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(orderPayload{ID: orderID, Amount: amount, Currency: currency}).
			SetResult(&payload).
			Post("/orders")
		if err != nil {
			return domain.GatewayOrder{}, fmt.Errorf("create gateway order %s: %w", orderID, err)
		}
		if resp.IsError() {
			return domain.GatewayOrder{}, fmt.Errorf("create gateway order %s: status %d", orderID, resp.StatusCode())
		}
		return payload.toDomain(), nil
	})
	if err != nil {
		return domain.GatewayOrder{}, err
	}
	return result.(domain.GatewayOrder), nil
}

func (c *Client) execute(call func() (interface{}, error)) (interface{}, error) {
	result, err := c.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, err
}
