package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageResolve = "resolve"
	stagePost    = "post"
	stageDelete  = "delete"
	stageFetch   = "fetch"
	stageEdit    = "edit"
	stageMessage = "message"
)

type Metrics struct {
	Relayed       *prometheus.CounterVec
	CardsEnriched prometheus.Counter
	Failures      *prometheus.CounterVec
}

// NewMetrics creates the relay counters and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Relayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkrelay",
			Name:      "relayed_total",
			Help:      "Messages reposted through a relay webhook.",
		}, []string{"kind"}),
		CardsEnriched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "linkrelay",
			Name:      "cards_enriched_total",
			Help:      "Preview cards merged with product data.",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkrelay",
			Name:      "failures_total",
			Help:      "Relay and enrichment failures by stage.",
		}, []string{"stage"}),
	}
}

func (m *Metrics) fail(stage string) {
	if m != nil {
		m.Failures.WithLabelValues(stage).Inc()
	}
}
