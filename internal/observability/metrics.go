package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// relief-ops core.
type Metrics struct {
	// Feed metrics.
	FeedFetches       *prometheus.CounterVec   // labels: feed={shelters,alerts}, outcome={success,error,stale}
	FeedFetchDuration *prometheus.HistogramVec // labels: feed={shelters,alerts}
	FeedItems         *prometheus.GaugeVec     // labels: feed={shelters,alerts}
	LiveMode          prometheus.Gauge

	// Workflow metrics.
	IncidentActions *prometheus.CounterVec
	IncidentsOpen   prometheus.Gauge
	ActivityLogSize prometheus.Gauge

	// Geocoding enrichment metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
	GeocodeEnabled     prometheus.Gauge

	// Change-event sink metrics.
	EventsPublished    prometheus.Counter
	EventPublishErrors prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FeedFetches,
		m.FeedFetchDuration,
		m.FeedItems,
		m.LiveMode,
		m.IncidentActions,
		m.IncidentsOpen,
		m.ActivityLogSize,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.EventsPublished,
		m.EventPublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reliefops",
			Name:      "feed_fetches_total",
			Help:      "Feed fetch attempts by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reliefops",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of one feed fetch including normalization.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"feed"}),
		FeedItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reliefops",
			Name:      "feed_items",
			Help:      "Item count of the last successful fetch per feed.",
		}, []string{"feed"}),
		LiveMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reliefops",
			Name:      "live_mode",
			Help:      "1 when live data mode is enabled, 0 when showing sample data.",
		}),
		IncidentActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reliefops",
			Name:      "incident_actions_total",
			Help:      "Incident workflow actions by action name.",
		}, []string{"action"}),
		IncidentsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reliefops",
			Name:      "incidents_open",
			Help:      "Incidents not yet closed.",
		}),
		ActivityLogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reliefops",
			Name:      "activity_log_size",
			Help:      "Entries currently held in the bounded activity feed.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reliefops",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reliefops",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reliefops",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reliefops",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reliefops",
			Name:      "change_events_published_total",
			Help:      "Change events delivered to the Kafka sink.",
		}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reliefops",
			Name:      "change_event_publish_errors_total",
			Help:      "Change-event sink publish failures.",
		}),
	}
}
