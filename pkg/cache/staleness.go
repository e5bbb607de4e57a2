package cache

import "time"

// DefaultTTL is the staleness window applied when a coordinator is configured
// without one.
const DefaultTTL = 5 * time.Minute

// Stale reports whether an entry's data is older than ttl at the given time.
//
// A stale Ready or Exhausted entry is eligible for a silent refresh on the
// next subscription: the coordinator issues a fresh initial fetch while the
// old pages stay visible, so the list never flashes empty. Staleness only
// triggers re-fetching; it never cancels an in-flight fetch. Authentication
// epoch transitions bypass the TTL entirely and invalidate immediately.
func Stale[T any](entry *Entry[T], now time.Time, ttl time.Duration) bool {
	if entry == nil {
		return false
	}
	return entry.IsStale(now, ttl)
}
