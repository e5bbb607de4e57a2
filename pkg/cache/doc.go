// Package cache implements the paginated collection store: per-key entries
// holding ordered fetched pages, a status state machine, and a generation
// counter that renders late fetch completions inert.
//
// # Keys
//
// A Key is (resource, variant, auth epoch). The epoch scopes entries to an
// authentication state so a feed fetched anonymously and the same feed
// fetched for a signed-in session never share cached pages:
//
//	key := cache.Resolve("feed", "recommended", true, auth)
//	// feedcache:feed:recommended:auth:7d02...
//
// # Entries
//
// Each entry owns an append-only page list, a Status
// (Idle/Loading/LoadingMore/Ready/Exhausted/Failed), and a generation
// counter. Invalidation bumps the generation; a fetch completion is applied
// only when the generation it captured at issue time still matches, so a
// response arriving after an invalidation is dropped rather than reordered
// into the new lifetime of the key.
//
// Failures never discard cached pages: a failed next-page fetch keeps the
// already rendered list intact and only blocks further appends until the
// caller retries.
//
// # Projection
//
// Project flattens an entry into the single de-duplicated list the UI
// renders; first occurrence wins, so shifting remote rankings cannot reorder
// items already on screen.
//
// # Metrics
//
// The package exports Prometheus counters:
//
//   - feedcache_entries_created_total / feedcache_entries_evicted_total
//   - feedcache_pages_appended_total
//   - feedcache_late_drops_total (generation-fenced completions)
//   - feedcache_invalidations_total
//   - feedcache_fetch_failures_total{class}
//   - feedcache_exhaustion_misreports_total
package cache
