package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons recorded by SubmitFailures.
const (
	ReasonEmpty      = "empty"
	ReasonValidation = "validation"
	ReasonStore      = "store"
)

// Metrics provides observability for message submission.
type Metrics struct {
	MessagesSubmitted   prometheus.Counter
	SubmitFailures      *prometheus.CounterVec
	ProvenanceFallbacks prometheus.Counter
	FeedPublishFailures prometheus.Counter
	SubmitDuration      prometheus.Histogram
}

// New registers relay metrics on reg; nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_messages_submitted_total",
			Help: "Total number of messages stored",
		}),
		SubmitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_submit_failures_total",
			Help: "Rejected or failed submissions by reason",
		}, []string{"reason"}),
		ProvenanceFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_provenance_fallbacks_total",
			Help: "Submissions stored with unknown provenance",
		}),
		FeedPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_feed_publish_failures_total",
			Help: "Stored messages the live feed failed to publish",
		}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_submit_duration_seconds",
			Help:    "Duration of Submit including provenance lookup",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementSubmitted() {
	m.MessagesSubmitted.Inc()
}

func (m *Metrics) IncrementFailure(reason string) {
	m.SubmitFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementProvenanceFallback() {
	m.ProvenanceFallbacks.Inc()
}

func (m *Metrics) IncrementPublishFailure() {
	m.FeedPublishFailures.Inc()
}

// ObserveSubmit records the duration of a Submit call started at start.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}
