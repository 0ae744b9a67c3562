// Package metrics provides Prometheus metrics collection for the CRUD
// endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metrics the endpoint reports.
type Collector struct {
	// OperationsTotal counts CRUD operations by schema, operation, and
	// outcome (ok, not_found, bad_request, error).
	OperationsTotal *prometheus.CounterVec

	// OperationDuration tracks how long each operation takes.
	OperationDuration *prometheus.HistogramVec
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on the given registry. Tests use
// a fresh registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemarest",
				Name:      "operations_total",
				Help:      "Total number of CRUD operations processed",
			},
			[]string{"schema", "operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schemarest",
				Name:      "operation_duration_seconds",
				Help:      "CRUD operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"schema", "operation"},
		),
	}
}

// Observe records one finished operation.
func (c *Collector) Observe(schema, operation, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.OperationsTotal.WithLabelValues(schema, operation, outcome).Inc()
	c.OperationDuration.WithLabelValues(schema, operation).Observe(elapsed.Seconds())
}
