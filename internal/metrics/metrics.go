package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeFailure labels operations that degraded or were dropped.
	OutcomeFailure = "failure"
)

var (
	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "incidents_total",
			Help:      "Total incidents recorded, partitioned by type and severity.",
		},
		[]string{"type", "severity"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "submissions_total",
			Help:      "Collector submission attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	capturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "captures_total",
			Help:      "Screenshot capture attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	captureSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "guardian",
			Name:      "capture_seconds",
			Help:      "Screenshot capture latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "actions_total",
			Help:      "Remedial action executions, partitioned by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

// Register attaches guardian collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		incidentsTotal,
		submissionsTotal,
		capturesTotal,
		captureSeconds,
		actionsTotal,
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

// ObserveIncident counts a newly recorded incident.
func ObserveIncident(incidentType, severity string) {
	incidentsTotal.WithLabelValues(incidentType, severity).Inc()
}

// ObserveSubmission counts a collector submission attempt.
func ObserveSubmission(delivered bool) {
	submissionsTotal.WithLabelValues(outcome(delivered)).Inc()
}

// ObserveCapture records a capture attempt with its duration.
func ObserveCapture(duration time.Duration, ok bool) {
	capturesTotal.WithLabelValues(outcome(ok)).Inc()
	if duration < 0 {
		duration = 0
	}
	captureSeconds.Observe(duration.Seconds())
}

// ObserveAction counts a remedial action execution.
func ObserveAction(action string, ok bool) {
	actionsTotal.WithLabelValues(action, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
