// Package metrics exporta as observações do núcleo como métricas Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

type Prometheus struct {
	registry           *prometheus.Registry
	rateLimitDecisions *prometheus.CounterVec
	replayChecks       *prometheus.CounterVec
	settlements        *prometheus.CounterVec
	settlementDuration prometheus.Histogram
}

var _ ports.Metrics = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Prometheus{
		registry: registry,
		rateLimitDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit admissions by action and result",
		}, []string{"action", "allowed"}),
		replayChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_checks_total",
			Help: "Replay guard lookups by outcome",
		}, []string{"hit"}),
		settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Payment verifications by outcome",
		}, []string{"outcome"}),
		settlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Time spent verifying and settling a payment",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
}

func (p *Prometheus) ObserveRateLimit(action string, allowed bool) {
	p.rateLimitDecisions.WithLabelValues(action, strconv.FormatBool(allowed)).Inc()
}

func (p *Prometheus) ObserveReplay(hit bool) {
	p.replayChecks.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

func (p *Prometheus) ObserveSettlement(outcome string, duration time.Duration) {
	p.settlements.WithLabelValues(outcome).Inc()
	p.settlementDuration.Observe(duration.Seconds())
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
