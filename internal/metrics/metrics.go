package metrics

import (
	"context"
	"net/http"
	"notigate/internal/ports"
	"notigate/internal/types"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "notigate"

	statsTimeout = 500 * time.Millisecond
)

// Metrics holds the collectors of one engine instance on a private registry, so several
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	decisions        *prometheus.CounterVec
	advisorFallbacks *prometheus.CounterVec
	decideDuration   prometheus.Histogram
}

// New registers the collectors. When stats is not nil, store sizes are exported as gauges read
// on every scrape.
func New(stats ports.StatsReporter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of decisions by outcome and reason",
			},
			[]string{"decision", "reason"},
		),
		advisorFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advisor_fallbacks_total",
				Help:      "Total number of advisor calls that fell back to rules",
			},
			[]string{"kind"},
		),
		decideDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decide_duration_seconds",
				Help:      "Latency of a full decision including the advisor",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),
	}
	m.registry.MustRegister(m.decisions, m.advisorFallbacks, m.decideDuration)
	if stats != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "users_tracked",
				Help:      "Users with window state",
			}, func() float64 { return float64(readStats(stats).UsersTracked) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audit_users",
				Help:      "Users with audit records",
			}, func() float64 { return float64(readStats(stats).AuditUsers) }),
		)
	}
	return m
}

func (m *Metrics) ObserveDecision(resp types.DecisionResponse, took time.Duration) {
	m.decisions.WithLabelValues(string(resp.Decision), resp.Reason).Inc()
	m.decideDuration.Observe(took.Seconds())
}

// ObserveAdvisorFallback counts a fallback; kind is "timeout" or "error".
func (m *Metrics) ObserveAdvisorFallback(kind string) {
	m.advisorFallbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func readStats(stats ports.StatsReporter) types.StoreStats {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	st, err := stats.Stats(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to read store stats")
	}
	return st
}
