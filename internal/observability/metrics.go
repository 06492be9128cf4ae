package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the incident pipeline.
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec // labels: outcome={success,error}
	LinesRead          prometheus.Counter
	LinesDropped       *prometheus.CounterVec // labels: reason
	IncidentsEmitted   prometheus.Counter
	PipelineRunning    prometheus.Gauge

	// Per-document metrics.
	IncidentsPerDocument prometheus.Histogram
	DocumentDuration     prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss,store_hit}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}

	// Weather metrics.
	WeatherLookups     *prometheus.CounterVec // labels: outcome={success,error,miss,cached}
	WeatherAPIDuration prometheus.Histogram
	WeatherEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DocumentsProcessed,
		m.LinesRead,
		m.LinesDropped,
		m.IncidentsEmitted,
		m.PipelineRunning,
		m.IncidentsPerDocument,
		m.DocumentDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.WeatherLookups,
		m.WeatherAPIDuration,
		m.WeatherEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DocumentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed by outcome.",
		}, []string{"outcome"}),
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total raw text lines read from documents.",
		}),
		LinesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Lines that did not become incidents, by reason.",
		}, []string{"reason"}),
		IncidentsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_emitted_total",
			Help:      "Total incidents written to sinks.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a document is being processed, 0 otherwise.",
		}),
		IncidentsPerDocument: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "incidents_per_document",
			Help:      "Number of incidents assembled from one document.",
			Buckets:   []float64{0, 10, 25, 50, 100, 200, 300, 500, 1000},
		}),
		DocumentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_processing_duration_seconds",
			Help:      "Duration of a complete fetch-parse-enrich-load cycle for one document.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Nominatim API request duration in seconds, including rate limit wait.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method"}),
		WeatherLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_lookups_total",
			Help:      "Historical weather lookups by outcome.",
		}, []string{"outcome"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Open-Meteo API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		WeatherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_enabled",
			Help:      "1 when weather enrichment is enabled, 0 otherwise.",
		}),
	}
}
