package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchesTotal counts issued page fetches by resource and kind
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedcache_fetches_total",
		Help: "Total page fetches issued by resource and kind",
	}, []string{"resource", "kind"}) // kind: "initial", "more", "retry"

	// fetchDuration observes page fetch latency by resource
	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedcache_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"resource"})

	// subscriptions gauges live subscriptions
	subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedcache_subscriptions",
		Help: "Number of live collection subscriptions",
	})

	// warmStarts counts cold keys seeded from a persisted snapshot
	warmStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedcache_warm_starts_total",
		Help: "Total subscriptions seeded from a persisted snapshot",
	})
)
