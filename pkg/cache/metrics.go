package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// entriesCreated counts lazily created cache entries
	entriesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_entries_created_total",
			Help: "Total number of cache entries created",
		},
	)

	// entriesEvicted counts entries dropped by the retention policy
	entriesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_entries_evicted_total",
			Help: "Total number of cache entries evicted by retention",
		},
	)

	// pagesAppended counts successfully applied page fetches
	pagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_pages_appended_total",
			Help: "Total number of pages appended to cache entries",
		},
	)

	// lateDrops counts fetch completions discarded by the generation fence
	lateDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_late_drops_total",
			Help: "Total number of fetch completions dropped due to generation mismatch",
		},
	)

	// invalidations counts explicit entry invalidations
	invalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_invalidations_total",
			Help: "Total number of cache entry invalidations",
		},
	)

	// fetchFailures counts failed fetches by error class
	fetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedcache_fetch_failures_total",
			Help: "Total number of failed page fetches by error class",
		},
		[]string{"class"}, // "network", "server"
	)

	// exhaustionMisreports counts walks terminated defensively
	exhaustionMisreports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedcache_exhaustion_misreports_total",
			Help: "Total number of walks terminated after consecutive empty pages",
		},
	)
)
