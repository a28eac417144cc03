// Package metrics provides observability for the token gate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Operations           *prometheus.CounterVec
	ComplianceRejections prometheus.Counter
	OperationDurationMs  prometheus.Histogram
}

// New registers the gate metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the gate metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcore_token_operations_total",
			Help: "Token gate operations by kind and outcome",
		}, []string{"op", "outcome"}),
		ComplianceRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartcore_compliance_rejections_total",
			Help: "Operations rejected by a compliance module pre-check",
		}),
		OperationDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartcore_token_operation_duration_ms",
			Help:    "Latency of token gate operations in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

// RecordOperation counts one gate operation by outcome.
func (m *Metrics) RecordOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

// ObserveOperation records the latency of one gate operation. Call with
// time.Now() from the start of the operation.
func (m *Metrics) ObserveOperation(start time.Time) {
	m.OperationDurationMs.Observe(float64(time.Since(start)) / float64(time.Millisecond))
}
