package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service's Prometheus instruments behind one
// registry so tests can construct isolated collectors.
type Collector struct {
	reg *prometheus.Registry

	// FeedRefreshes counts refresh attempts per feed ("static"|"live")
	// and outcome ("ok"|"fetch_error"|"parse_error"|"error").
	FeedRefreshes *prometheus.CounterVec

	FeedRefreshDuration *prometheus.HistogramVec

	// LiveTripUpdates tracks how many trip updates the last live refresh
	// produced; 0 means the service is running on static schedule only.
	LiveTripUpdates prometheus.Gauge

	RequestDuration *prometheus.HistogramVec

	NearbyStopsReturned prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FeedRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transitboard_feed_refreshes_total",
			Help: "Feed refresh attempts by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedRefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transitboard_feed_refresh_duration_seconds",
			Help:    "Duration of feed download and decode.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"feed"}),
		LiveTripUpdates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transitboard_live_trip_updates",
			Help: "Trip updates decoded by the most recent live refresh.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transitboard_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"route", "status"}),
		NearbyStopsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transitboard_nearby_stops_returned",
			Help:    "Stops returned per nearby query.",
			Buckets: prometheus.LinearBuckets(0, 10, 7),
		}),
	}

	reg.MustRegister(
		c.FeedRefreshes, c.FeedRefreshDuration, c.LiveTripUpdates,
		c.RequestDuration, c.NearbyStopsReturned,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
