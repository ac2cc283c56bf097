package pointsmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PointsMetrics records service-level telemetry for the points module.
type PointsMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
	RecordLedgerRowsWritten(ctx context.Context, kind string, rows int)
	RecordSkippedParticipants(ctx context.Context, count int)
	RecordHonorOutcome(ctx context.Context, action string)
}

type prometheusMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	rows      *prometheus.CounterVec
	skipped   prometheus.Counter
	honors    *prometheus.CounterVec
}

// NewPrometheus registers the points collectors on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) PointsMetrics {
	m := &prometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "operation_success_total",
			Help:      "Service operations that completed without an infrastructure error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "operation_failures_total",
			Help:      "Service operations that returned an error or panicked.",
		}, []string{"operation", "service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "ledger_rows_written_total",
			Help:      "Ledger rows inserted, by row kind.",
		}, []string{"kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "attendance_skipped_total",
			Help:      "Group members excluded from fan-out by attendance gating.",
		}),
		honors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "points",
			Name:      "honor_outcomes_total",
			Help:      "Honor award outcomes by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(m.attempts, m.successes, m.failures, m.duration, m.rows, m.skipped, m.honors)
	return m
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.duration.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordLedgerRowsWritten(_ context.Context, kind string, rows int) {
	if rows <= 0 {
		return
	}
	m.rows.WithLabelValues(kind).Add(float64(rows))
}

func (m *prometheusMetrics) RecordSkippedParticipants(_ context.Context, count int) {
	if count <= 0 {
		return
	}
	m.skipped.Add(float64(count))
}

func (m *prometheusMetrics) RecordHonorOutcome(_ context.Context, action string) {
	m.honors.WithLabelValues(action).Inc()
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

// NewNoop returns a PointsMetrics that records nothing.
func NewNoop() PointsMetrics { return &NoOpMetrics{} }

func (*NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (*NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (*NoOpMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (*NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (*NoOpMetrics) RecordLedgerRowsWritten(context.Context, string, int)                   {}
func (*NoOpMetrics) RecordSkippedParticipants(context.Context, int)                         {}
func (*NoOpMetrics) RecordHonorOutcome(context.Context, string)                             {}
