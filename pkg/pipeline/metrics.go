package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// Metrics holds the orchestrator's instrumentation. Counters are
// labeled by direction and profile; failures additionally by fault
// code so operators can tell a signature problem from a stale clock.
type Metrics struct {
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metrics. reg may be
// nil to skip registration (tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digikoppeling",
			Subsystem: "pipeline",
			Name:      "messages_processed_total",
			Help:      "Messages fully processed, by direction and profile.",
		}, []string{"direction", "profile"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "digikoppeling",
			Subsystem: "pipeline",
			Name:      "messages_failed_total",
			Help:      "Messages rejected, by direction, profile and fault code.",
		}, []string{"direction", "profile", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.processed, m.failed)
	}
	return m
}

// RegisterPendingGauge exposes the number of unresolved exchanges.
func (m *Metrics) RegisterPendingGauge(reg prometheus.Registerer, pending func() int) {
	if reg == nil {
		return
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "digikoppeling",
		Subsystem: "pipeline",
		Name:      "pending_exchanges",
		Help:      "Exchanges awaiting a correlated response.",
	}, func() float64 { return float64(pending()) }))
}

func (m *Metrics) observeProcessed(direction, profileID string) {
	m.processed.WithLabelValues(direction, profileID).Inc()
}

func (m *Metrics) observeFailed(direction, profileID string, err error) {
	code, ok := fault.CodeOf(err)
	if !ok {
		code = "Internal"
	}
	m.failed.WithLabelValues(direction, profileID, string(code)).Inc()
}
