package adaptive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "foresight"
	metricsSubsystem = "adaptive"
)

// Action outcome labels.
const (
	resultApplied  = "applied"
	resultFailed   = "failed"
	resultRejected = "rejected"
	resultSkipped  = "skipped"
)

// Cycle outcome labels.
const (
	cycleCompleted = "completed"
	cycleAborted   = "aborted"
	cycleSkipped   = "skipped"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "cycles_total",
		Help:      "Adaptation cycles by outcome",
	}, []string{"outcome"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of adaptation cycles",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "actions_total",
		Help:      "Actions considered by type, source and result",
	}, []string{"type", "source", "result"})

	predictionConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "prediction_confidence",
		Help:      "Confidence of the latest prediction per horizon",
	}, []string{"horizon"})

	predictedUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "predicted_utilization",
		Help:      "Latest predicted utilization per horizon and resource",
	}, []string{"horizon", "resource"})

	scalingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "scaling_events",
		Help:      "Scaling events currently retained in the audit log",
	})

	policyUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "policy_updates_total",
		Help:      "Policies inserted or replaced through the manager",
	})
)
