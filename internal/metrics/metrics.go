package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful calls.
	OutcomeSuccess = "success"
	// OutcomeError labels failed calls.
	OutcomeError = "error"
	// OutcomeCached labels classifier calls answered from the prediction cache.
	OutcomeCached = "cached"
	// OutcomeInvalid labels classifier calls rejected before leaving the process.
	OutcomeInvalid = "invalid"
	// OutcomeSkipped labels notifications with no destination configured.
	OutcomeSkipped = "skipped"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsieve",
			Name:      "decisions_total",
			Help:      "Total number of decisions, partitioned by action and rule.",
		},
		[]string{"action", "rule"},
	)

	detectorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsieve",
			Name:      "detector_errors_total",
			Help:      "Historical store failures seen by detectors.",
		},
		[]string{"detector"},
	)

	classifierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsieve",
			Name:      "classifier_calls_total",
			Help:      "Classifier calls, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertsieve",
			Name:      "notifications_total",
			Help:      "Forward notifications, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	pipelineSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "alertsieve",
			Name:      "pipeline_seconds",
			Help:      "End-to-end pipeline latency per alert in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
	)

	droppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alertsieve",
			Name:      "dropped_alerts_total",
			Help:      "Accepted alerts discarded undecided because shutdown ran out of time.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "alertsieve",
			Name:      "queue_depth",
			Help:      "Alerts accepted but not yet picked up by a worker.",
		},
	)
)

// Register attaches alertsieve collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		decisionsTotal,
		detectorErrorsTotal,
		classifierCallsTotal,
		notificationsTotal,
		pipelineSeconds,
		droppedTotal,
		queueDepth,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDecision counts a decision by action and rule (the reason without its numeric suffix).
func ObserveDecision(action, rule string) {
	decisionsTotal.WithLabelValues(action, rule).Inc()
}

// ObserveDetectorError counts a store failure for the named detector.
func ObserveDetectorError(detector string) {
	detectorErrorsTotal.WithLabelValues(detector).Inc()
}

// ObserveClassifierCall counts a classifier call outcome.
func ObserveClassifierCall(outcome string) {
	classifierCallsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a notification outcome.
func ObserveNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// ObservePipeline records a pipeline duration.
func ObservePipeline(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	pipelineSeconds.Observe(duration.Seconds())
}

// ObserveDropped counts an alert dropped undecided at shutdown
func ObserveDropped() {
	droppedTotal.Inc()
}

// SetQueueDepth publishes the current pool backlog.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
