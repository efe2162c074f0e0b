// Package metrics exposes Prometheus instrumentation for the risk
// pipeline: gate evaluations, snapshot builds, compliance checks, audit
// persistence and the benchmark circuit breaker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gate outcome labels (bounded set).
const (
	OutcomePass  = "pass"
	OutcomeBlock = "block"
)

var (
	// GateEvaluations counts hard gate evaluations by outcome.
	GateEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_gate_evaluations_total",
		Help: "Total hard risk gate evaluations by outcome (pass/block)",
	}, []string{"outcome"})

	// GateViolations counts individual violations by code.
	GateViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_gate_violations_total",
		Help: "Total hard gate violations by violation code",
	}, []string{"code"})

	// GateEvaluationDuration observes evaluation latency.
	GateEvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskgate_gate_evaluation_duration_seconds",
		Help:    "Duration of hard gate evaluations",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// SnapshotBuildDuration observes risk snapshot construction latency,
	// including benchmark series assembly.
	SnapshotBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskgate_snapshot_build_duration_seconds",
		Help:    "Duration of risk snapshot builds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	// SnapshotAlerts counts risk alerts raised by snapshot builds.
	SnapshotAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_snapshot_alerts_total",
		Help: "Total risk alerts raised during snapshot builds, by alert code",
	}, []string{"alert"})

	// ComplianceViolations counts compliance violations by code.
	ComplianceViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_compliance_violations_total",
		Help: "Total compliance violations by violation code",
	}, []string{"code"})

	// BenchmarkFetches counts benchmark series fetch attempts.
	BenchmarkFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_benchmark_fetches_total",
		Help: "Total benchmark series fetches by symbol and result",
	}, []string{"symbol", "result"})

	// BreakerState tracks circuit breaker state (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "riskgate_circuit_breaker_state",
		Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
	}, []string{"breaker"})

	// AuditLogs counts audit persistence attempts.
	AuditLogs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskgate_audit_logs_total",
		Help: "Total audit log writes by event type and result",
	}, []string{"event_type", "result"})
)

// RecordGateOutcome records one gate evaluation and its violations.
func RecordGateOutcome(breached bool, codes []string, durationSeconds float64) {
	outcome := OutcomePass
	if breached {
		outcome = OutcomeBlock
	}
	GateEvaluations.WithLabelValues(outcome).Inc()
	GateEvaluationDuration.Observe(durationSeconds)
	for _, code := range codes {
		GateViolations.WithLabelValues(code).Inc()
	}
}

// RecordSnapshotBuild records a snapshot build and its alerts.
func RecordSnapshotBuild(durationSeconds float64, alerts []string) {
	SnapshotBuildDuration.Observe(durationSeconds)
	for _, alert := range alerts {
		SnapshotAlerts.WithLabelValues(alert).Inc()
	}
}

// RecordComplianceViolations bumps the compliance counters.
func RecordComplianceViolations(codes []string) {
	for _, code := range codes {
		ComplianceViolations.WithLabelValues(code).Inc()
	}
}

// RecordBenchmarkFetch records one benchmark series fetch attempt.
func RecordBenchmarkFetch(symbol string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	BenchmarkFetches.WithLabelValues(symbol, result).Inc()
}

// SetBreakerState maps a gobreaker state name onto the state gauge.
func SetBreakerState(name, state string) {
	var value float64
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	BreakerState.WithLabelValues(name).Set(value)
}

// RecordAuditLog records an audit persistence attempt.
func RecordAuditLog(eventType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	AuditLogs.WithLabelValues(eventType, result).Inc()
}
