package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit report generation.
type Metrics struct {
	ReportDuration prometheus.Histogram
	ReportFailures prometheus.Counter
	RowsReported   prometheus.Gauge
	OrphanedRows   prometheus.Gauge
}

// New registers report metrics on reg; nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ReportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_report_duration_seconds",
			Help:    "Time to build the audit join report",
			Buckets: prometheus.DefBuckets,
		}),
		ReportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_report_failures_total",
			Help: "Audit reports that failed to build",
		}),
		RowsReported: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_report_rows",
			Help: "Rows in the most recent audit report",
		}),
		OrphanedRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_report_orphaned_rows",
			Help: "Messages without a registered recipient in the most recent report",
		}),
	}
}

func (m *Metrics) ObserveReport(start time.Time, rows, orphaned int) {
	m.ReportDuration.Observe(time.Since(start).Seconds())
	m.RowsReported.Set(float64(rows))
	m.OrphanedRows.Set(float64(orphaned))
}

func (m *Metrics) IncrementFailures() {
	m.ReportFailures.Inc()
}
