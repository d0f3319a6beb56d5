// Package metrics exposes the Prometheus instruments of the pitch client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeComplete = "complete"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Metrics contains all Prometheus metrics for the pitch client
type Metrics struct {
	// Recorder metrics
	RecordingsStarted   prometheus.Counter
	RecordingsFinalized prometheus.Counter
	FragmentsAccepted   prometheus.Counter
	FragmentsDiscarded  prometheus.Counter
	CaptureFailures     prometheus.Counter

	// Submission metrics
	Submissions        *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	StaleResults       prometheus.Counter

	// Playable handle metrics
	LiveHandles prometheus.Gauge
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitch_recordings_started_total",
			Help: "Total number of capture sessions started",
		}),
		RecordingsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitch_recordings_finalized_total",
			Help: "Total number of capture sessions finalized into an artifact",
		}),
		FragmentsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitch_fragments_accepted_total",
			Help: "Total number of capture fragments appended to a recording",
		}),
		FragmentsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitch_fragments_discarded_total",
			Help: "Total number of zero-length capture fragments discarded",
		}),
		CaptureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitch_capture_unavailable_total",
			Help: "Total number of capture starts refused by the device",
		}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pitch_submissions_total",
			Help: "Total number of submissions by outcome",
		}, []string{"outcome"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pitch_submission_duration_seconds",
			Help:    "Round trip time of analysis requests",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "pitch_stale_results_total",
			Help: "Total number of analysis responses discarded because the artifact changed",
		}),

		LiveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pitch_playable_handles",
			Help: "Current number of live playable handles",
		}),
	}
}
