package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar_watch"

// Metrics holds the Prometheus collectors for the radar client.
type Metrics struct {
	// Polling metrics.
	PollRequests *prometheus.CounterVec   // labels: resource={status,images,reports,aircraft}, outcome={success,error,fallback}
	PollDuration *prometheus.HistogramVec // labels: resource
	FetchError   prometheus.Gauge

	// Backend client metrics.
	APIRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	APIDuration *prometheus.HistogramVec // labels: endpoint

	// Fallback source metrics.
	FallbackServed *prometheus.CounterVec // labels: resource
	BreakerOpen    *prometheus.GaugeVec   // labels: resource

	// Timeline and proximity state.
	FramesObserved  prometheus.Gauge
	FramesPredicted prometheus.Gauge
	FeedOffline     prometheus.Gauge
	NearestStormKm  prometheus.Gauge

	LocationRefreshes *prometheus.CounterVec // labels: outcome={success,unsupported,permission_denied,timeout}
	AlertsPublished   *prometheus.CounterVec // labels: publisher, outcome={success,error}
	WebSocketClients  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_requests_total",
			Help:      "Backend poll attempts by resource and outcome.",
		}, []string{"resource", "outcome"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one poll of a backend resource.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource"}),
		FetchError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_error",
			Help:      "1 while the latest poll of any resource failed.",
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Backend API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		FallbackServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_served_total",
			Help:      "Responses served from cached or static fallback data.",
		}, []string{"resource"}),
		BreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for a resource is open.",
		}, []string{"resource"}),
		FramesObserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_observed",
			Help:      "Observed radar frames in the current timeline.",
		}),
		FramesPredicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_predicted",
			Help:      "Predicted radar frames in the current timeline.",
		}),
		FeedOffline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_offline",
			Help:      "1 when the newest observed frame is older than 15 minutes.",
		}),
		NearestStormKm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nearest_storm_km",
			Help:      "Distance to the nearest qualifying storm cell, -1 when none.",
		}),
		LocationRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_refreshes_total",
			Help:      "Geolocation refreshes by outcome.",
		}, []string{"outcome"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Proximity alerts published by publisher and outcome.",
		}, []string{"publisher", "outcome"}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket state subscribers.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PollRequests,
		m.PollDuration,
		m.FetchError,
		m.APIRequests,
		m.APIDuration,
		m.FallbackServed,
		m.BreakerOpen,
		m.FramesObserved,
		m.FramesPredicted,
		m.FeedOffline,
		m.NearestStormKm,
		m.LocationRefreshes,
		m.AlertsPublished,
		m.WebSocketClients,
	}
}
