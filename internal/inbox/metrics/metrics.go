package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks live inbox subscriptions.
type Metrics struct {
	ActiveSubscriptions prometheus.Gauge
	Resumes             prometheus.Counter
	Resyncs             prometheus.Counter
	ViewsEmitted        prometheus.Counter
}

// New registers inbox metrics on reg; nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_inbox_active_subscriptions",
			Help: "Live inbox subscriptions currently open",
		}),
		Resumes: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_inbox_resumes_total",
			Help: "Feed resubscriptions after a dropped live channel",
		}),
		Resyncs: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_inbox_resyncs_total",
			Help: "Periodic store resyncs that recovered missed messages",
		}),
		ViewsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_inbox_views_emitted_total",
			Help: "Inbox views offered to subscribers",
		}),
	}
}

func (m *Metrics) SubscriptionOpened() {
	m.ActiveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	m.ActiveSubscriptions.Dec()
}

func (m *Metrics) IncrementResumes() {
	m.Resumes.Inc()
}

func (m *Metrics) IncrementResyncs() {
	m.Resyncs.Inc()
}

func (m *Metrics) IncrementViews() {
	m.ViewsEmitted.Inc()
}
