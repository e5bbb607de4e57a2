// Package metrics provides the centralized Prometheus metrics registry for
// feedcache. All metrics are defined in their respective packages (cache,
// coordinator) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by feedcache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Entry Metrics (pkg/cache):
//   - feedcache_entries_created_total (Counter): Cache entries created
//   - feedcache_entries_evicted_total (Counter): Entries evicted after the retention window
//   - feedcache_pages_appended_total (Counter): Pages appended to entries
//   - feedcache_late_drops_total (Counter): Fetch completions dropped by the generation fence
//   - feedcache_invalidations_total (Counter): Entry invalidations
//   - feedcache_fetch_failures_total{class} (Counter): Failures recorded on entries by error class
//   - feedcache_exhaustion_misreports_total (Counter): Entries force-exhausted after consecutive empty pages
//
// Coordinator Metrics (pkg/coordinator):
//   - feedcache_fetches_total{resource, kind} (Counter): Fetches issued by resource and kind (initial, more, retry)
//   - feedcache_fetch_duration_seconds{resource} (Histogram): Fetch duration by resource
//   - feedcache_subscriptions (Gauge): Currently open subscriptions
//   - feedcache_warm_starts_total (Counter): Subscriptions served from a persisted snapshot before the first fetch
//
// Example Prometheus Queries:
//
//   # Late-drop rate (fence effectiveness)
//   rate(feedcache_late_drops_total[5m])
//
//   # Fetch error rate by class
//   rate(feedcache_fetch_failures_total[5m])
//
//   # P95 fetch latency per resource
//   histogram_quantile(0.95, rate(feedcache_fetch_duration_seconds_bucket[5m]))
//
//   # Share of load-mores in all fetches
//   sum(rate(feedcache_fetches_total{kind="more"}[5m])) /
//   sum(rate(feedcache_fetches_total[5m]))
