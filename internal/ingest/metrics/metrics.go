package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ingestion cycles.
type Metrics struct {
	// Cycle outcomes by final run status
	Cycles *prometheus.CounterVec

	CycleDuration prometheus.Histogram

	// Download latency and volume by source type (lotl, tl)
	FetchDuration *prometheus.HistogramVec
	FetchedBytes  *prometheus.CounterVec

	// Snapshot size of the latest run per country
	Services *prometheus.GaugeVec

	// Detected changes by kind
	Changes *prometheus.CounterVec

	// Failing rows of the latest run per rule
	QualityFailures *prometheus.GaugeVec

	PublishFailures prometheus.Counter

	LastSuccess prometheus.Gauge
}

// NewWithRegisterer registers the metrics on reg. Pushgateway pushes and tests
// use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tlwatch_ingest_cycles_total",
			Help: "Ingestion cycles by final run status",
		}, []string{"status"}),

		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tlwatch_ingest_cycle_duration_seconds",
			Help:    "Wall time of a full ingestion cycle",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tlwatch_fetch_duration_seconds",
			Help:    "Duration of document downloads including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source_type"}),

		FetchedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tlwatch_fetched_bytes_total",
			Help: "Bytes downloaded by source type",
		}, []string{"source_type"}),

		Services: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlwatch_snapshot_services",
			Help: "Services in the latest snapshot by country",
		}, []string{"country_code"}),

		Changes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tlwatch_changes_detected_total",
			Help: "Detected service changes by kind",
		}, []string{"kind"}),

		QualityFailures: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlwatch_quality_failed_rows",
			Help: "Rows failing each quality rule in the latest run",
		}, []string{"rule_id", "severity"}),

		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tlwatch_change_publish_failures_total",
			Help: "Cycles whose change events could not be published",
		}),

		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "tlwatch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle",
		}),
	}
}

func (m *Metrics) ObserveCycle(status string, d time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(d.Seconds())
	if status == "ok" {
		m.LastSuccess.Set(float64(finishedAt.Unix()))
	}
}

func (m *Metrics) ObserveFetch(sourceType string, d time.Duration, bytes int64) {
	if m != nil {
		m.FetchDuration.WithLabelValues(sourceType).Observe(d.Seconds())
		m.FetchedBytes.WithLabelValues(sourceType).Add(float64(bytes))
	}
}

func (m *Metrics) SetServices(countryCode string, n int) {
	if m != nil {
		m.Services.WithLabelValues(countryCode).Set(float64(n))
	}
}

func (m *Metrics) AddChanges(kind string, n int) {
	if m != nil && n > 0 {
		m.Changes.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) SetQualityFailures(ruleID, severity string, n int) {
	if m != nil {
		m.QualityFailures.WithLabelValues(ruleID, severity).Set(float64(n))
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
