// Package metrics exports pipeline observability to Prometheus. One Sink
// is created at process start and handed to the orchestrator and scorer;
// it is never re-initialized mid-run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"personpipe/internal/quality"
)

// Sink owns the pipeline metric families on a private registry so repeated
// construction in tests never collides.
type Sink struct {
	registry *prometheus.Registry

	qualityMetrics  *prometheus.GaugeVec
	qualityScore    prometheus.Gauge
	piiMaskingScore prometheus.Gauge
	recordsTotal    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	processingTime  *prometheus.HistogramVec
	validationTotal *prometheus.CounterVec
}

// NewSink creates a sink with all pipeline metrics registered.
func NewSink() *Sink {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Sink{
		registry: registry,

		qualityMetrics: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_data_quality",
			Help: "Data quality metrics",
		}, []string{"metric_name", "check_type"}),

		qualityScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_quality_score",
			Help: "Overall data quality score",
		}),

		piiMaskingScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_pii_masking_score",
			Help: "PII masking compliance score",
		}),

		recordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_records_total",
			Help: "Total records processed",
		}, []string{"status"}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total ingestion runs",
		}, []string{"status"}),

		processingTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_processing_seconds",
			Help:    "Time spent processing data",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0},
		}, []string{"operation"}),

		validationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_validation_checks",
			Help: "Data validation results",
		}, []string{"check_name", "status"}),
	}
}

// RecordSnapshot exports a quality snapshot's ratios and composite score.
func (s *Sink) RecordSnapshot(snap quality.Snapshot) {
	if s == nil {
		return
	}
	s.qualityScore.Set(snap.OverallScore)
	s.piiMaskingScore.Set(snap.PIIMasking)
	s.qualityMetrics.WithLabelValues("pii", "masking").Set(snap.PIIMasking)
	for field, value := range snap.Completeness {
		s.qualityMetrics.WithLabelValues(field, "completeness").Set(value)
	}
	for field, value := range snap.Uniqueness {
		s.qualityMetrics.WithLabelValues(field, "uniqueness").Set(value)
	}
	for field, value := range snap.FormatValidity {
		s.qualityMetrics.WithLabelValues(field, "format").Set(value)
	}
}

// RecordOutcome counts processed records by status.
func (s *Sink) RecordOutcome(status string, records int) {
	if s == nil || records <= 0 {
		return
	}
	s.recordsTotal.WithLabelValues(status).Add(float64(records))
}

// RecordRunOutcome counts whole ingestion runs by status.
func (s *Sink) RecordRunOutcome(status string) {
	if s == nil {
		return
	}
	s.runsTotal.WithLabelValues(status).Inc()
}

// ObserveDuration records how long a pipeline operation took.
func (s *Sink) ObserveDuration(operation string, d time.Duration) {
	if s == nil {
		return
	}
	s.processingTime.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCheck counts a validation check outcome for the given number of
// records. A failing check always counts at least once, even when it
// cannot name affected rows (an empty dataset, for example).
func (s *Sink) RecordCheck(name string, ok bool, records int) {
	if s == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
		if records < 1 {
			records = 1
		}
	} else if records <= 0 {
		return
	}
	s.validationTotal.WithLabelValues(name, status).Add(float64(records))
}

// Handler serves the sink's registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
