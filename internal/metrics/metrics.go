package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	SavesSucceeded  prometheus.Counter
	SavesFailed     prometheus.Counter
	SavesRejected   prometheus.Counter
	MappingErrors   prometheus.Counter
	DuplicateChecks *prometheus.CounterVec
	SaveDuration    prometheus.Histogram
	EnabledMappings prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics registered with reg. A nil reg
// uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SavesSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "notion_relay_saves_succeeded_total",
			Help: "Total number of emails saved as Notion pages",
		}),
		SavesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "notion_relay_saves_failed_total",
			Help: "Total number of saves that failed to create a page",
		}),
		SavesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "notion_relay_saves_rejected_total",
			Help: "Total number of saves rejected because no property was mapped",
		}),
		MappingErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "notion_relay_mapping_errors_total",
			Help: "Total number of property mappings that failed while saving",
		}),
		DuplicateChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notion_relay_duplicate_checks_total",
			Help: "Duplicate checks by outcome",
		}, []string{"outcome"}),
		SaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notion_relay_save_duration_seconds",
			Help:    "Time spent saving an email, from fetch to page creation",
			Buckets: prometheus.DefBuckets,
		}),
		EnabledMappings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notion_relay_enabled_mappings",
			Help: "Number of enabled property mappings",
		}),
	}
}
