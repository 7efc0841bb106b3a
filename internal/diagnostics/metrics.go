package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransactionsApplied *prometheus.CounterVec
	TransactionsDropped *prometheus.CounterVec
	RecordsMalformed    prometheus.Counter
	EventPublishErrors  prometheus.Counter
}

// NewMetrics registers the engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransactionsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_transactions_applied_total",
				Help: "Total number of transactions applied to an account",
			},
			[]string{"kind"},
		),
		TransactionsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_transactions_dropped_total",
				Help: "Total number of transactions rejected by an account",
			},
			[]string{"kind", "reason"},
		),
		RecordsMalformed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_records_malformed_total",
				Help: "Total number of input records that could not be parsed",
			},
		),
		EventPublishErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_event_publish_errors_total",
				Help: "Total number of drop events that could not be published",
			},
		),
	}
}
