package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "objectstore"

const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Metrics counts store mutations. A nil *Metrics records nothing.
type Metrics struct {
	// OperationsTotal counts mutations by operation and outcome
	// (success, partial, error).
	OperationsTotal *prometheus.CounterVec

	// FailedItemsTotal counts items reported in FailedData.
	FailedItemsTotal *prometheus.CounterVec

	// OperationDurationSeconds measures the storage round trip.
	OperationDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the store metrics in reg. Use
// prometheus.DefaultRegisterer to expose them globally.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Store mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		FailedItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failed_items_total",
			Help:      "Items rejected inside otherwise settled batches.",
		}, []string{"operation"}),
		OperationDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of store mutations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation"}),
	}
}

func (m *Metrics) record(operation string, start time.Time, failed int, err error) {
	if m == nil {
		return
	}

	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
	case failed > 0:
		outcome = OutcomePartial
	}

	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	if failed > 0 {
		m.FailedItemsTotal.WithLabelValues(operation).Add(float64(failed))
	}
	m.OperationDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
