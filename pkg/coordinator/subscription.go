package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/feedstream/feedcache/pkg/cache"
)

// Snapshot is the subscriber-facing view of one collection: the projected
// de-duplicated item list plus the loading state needed to render it.
type Snapshot[T any] struct {
	Items   []T
	Status  cache.Status
	Err     error
	HasNext bool
}

// Subscription is a live view of one (resource, variant) pair. Every cache
// mutation relevant to the subscription's current key pushes a fresh Snapshot
// on Updates; delivery is latest-wins, so a slow consumer sees the newest
// state rather than a backlog and never blocks the coordinator.
type Subscription[T any] struct {
	c        *Coordinator[T]
	id       uint64
	resource string

	mu      sync.Mutex
	variant string
	key     cache.Key
	updates chan Snapshot[T]
	closed  bool
}

// Subscribe creates a subscription for a registered resource variant,
// resolves its cache key under the current authentication state, and kicks
// off the initial load (or a silent refresh when the cached entry is stale).
//
// The context bounds only the warm-start snapshot load. Fetches run under the
// coordinator's own context: entries are shared across subscribers, so one
// view's teardown must not abort or fail a fetch others are waiting on. Call
// Close when the view goes away; a fetch still in flight then completes into
// the entry as usual.
func (c *Coordinator[T]) Subscribe(ctx context.Context, resource, variant string) (*Subscription[T], error) {
	if _, ok := c.resource(resource); !ok {
		return nil, fmt.Errorf("resource %q not registered", resource)
	}

	key := c.resolveKey(resource, variant)

	sub := &Subscription[T]{
		c:        c,
		resource: resource,
		variant:  variant,
		key:      key,
		updates:  make(chan Snapshot[T], 1),
	}

	c.mu.Lock()
	c.nextSubID++
	sub.id = c.nextSubID
	c.subs[sub.id] = sub
	subscriptions.Inc()
	c.mu.Unlock()

	// warm start: a persisted projection fills the view while the real
	// initial fetch runs
	warm := false
	entry := c.store.CreateIfAbsent(key)
	if c.snapshots != nil && entry.Status() == cache.StatusIdle && entry.PageCount() == 0 {
		if items, err := c.snapshots.Load(ctx, key); err == nil && len(items) > 0 {
			warmStarts.Inc()
			warm = true
			sub.push(Snapshot[T]{Items: items, Status: cache.StatusLoading})
		}
	}

	c.ensureLoaded(key)
	if !warm {
		// pushing the cold view here would overwrite the warm snapshot
		// under latest-wins conflation
		sub.push(c.snapshotFor(key))
	}
	return sub, nil
}

// Updates returns the channel snapshots are pushed on. The channel is closed
// by Close.
func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// Current returns the present view of the subscription's key without waiting
// for a push.
func (s *Subscription[T]) Current() Snapshot[T] {
	return s.c.snapshotFor(s.currentKey())
}

// LoadMore requests the next page. No-op when the collection is exhausted,
// failed, or a fetch is already in flight.
func (s *Subscription[T]) LoadMore() {
	s.c.loadMore(s.currentKey())
}

// Retry re-issues the fetch that failed. No-op unless the entry is Failed.
func (s *Subscription[T]) Retry() {
	s.c.retry(s.currentKey())
}

// SwitchVariant re-points the subscription at another variant of the same
// resource, e.g. a feed tab change. The old variant's entry is left intact so
// switching back is cheap; a fetch still in flight for it completes into its
// own entry. The new key is loaded if cold or stale.
func (s *Subscription[T]) SwitchVariant(variant string) {
	s.c.mu.Lock()
	res := s.c.resources[s.resource]
	newKey := cache.Resolve(s.resource, variant, res.Identity, s.c.auth)
	s.c.known[newKey] = struct{}{}
	s.c.mu.Unlock()

	s.mu.Lock()
	s.variant = variant
	s.key = newKey
	s.mu.Unlock()

	s.c.ensureLoaded(newKey)
	s.push(s.c.snapshotFor(newKey))
}

// Close detaches the subscription and closes Updates. Idempotent.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.updates)
	s.mu.Unlock()

	s.c.mu.Lock()
	delete(s.c.subs, s.id)
	subscriptions.Dec()
	s.c.mu.Unlock()
}

func (s *Subscription[T]) currentKey() cache.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// swapKey updates the key if it differs. Caller holds the coordinator lock.
func (s *Subscription[T]) swapKey(key cache.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == key {
		return false
	}
	s.key = key
	return true
}

// push delivers a snapshot with latest-wins conflation.
func (s *Subscription[T]) push(snap Snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.updates <- snap:
			return
		default:
			// drop the stale pending snapshot, then try again
			select {
			case <-s.updates:
			default:
			}
		}
	}
}
