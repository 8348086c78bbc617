package reconciler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eleven-am/netform/internal/domain"
)

type Metrics struct {
	nodeOutcomes     *prometheus.CounterVec
	providerCalls    *prometheus.HistogramVec
	runDuration      *prometheus.HistogramVec
	danglingTotal    prometheus.Counter
	driftedResources *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		nodeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netform_node_outcomes_total",
				Help: "Number of reconciled nodes by kind and outcome.",
			},
			[]string{"operation", "kind", "outcome"},
		),
		providerCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netform_provider_call_duration_seconds",
				Help:    "Latency of provider API calls.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"call", "kind", "result"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netform_run_duration_seconds",
				Help:    "Duration of a full apply, plan, destroy or drift run.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		danglingTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "netform_dangling_resources_total",
				Help: "Resources created whose record could not be persisted.",
			},
		),
		driftedResources: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netform_drift_resources",
				Help: "Resources by drift status at the last drift check.",
			},
			[]string{"status"},
		),
	}
}

// MustRegister registers every collector on registry.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.nodeOutcomes,
		m.providerCalls,
		m.runDuration,
		m.danglingTotal,
		m.driftedResources,
	)
}

func (m *Metrics) observeOutcome(operation string, o domain.NodeOutcome) {
	m.nodeOutcomes.WithLabelValues(operation, string(o.Kind), string(o.Outcome)).Inc()
}

func (m *Metrics) observeCall(call string, kind domain.ResourceKind, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(call, string(kind), result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRun(operation string, start time.Time) {
	m.runDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeDrift(reports []domain.DriftReport) {
	counts := map[domain.DriftStatus]float64{
		domain.DriftInSync:      0,
		domain.DriftDrifted:     0,
		domain.DriftMissing:     0,
		domain.DriftNotRecorded: 0,
		domain.DriftError:       0,
	}
	for _, r := range reports {
		counts[r.Status]++
	}
	for status, n := range counts {
		m.driftedResources.WithLabelValues(string(status)).Set(n)
	}
}
