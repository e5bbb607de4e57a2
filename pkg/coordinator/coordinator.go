// Package coordinator drives page loading for paginated collections: initial
// load, load-more, deliberate retry, silent refresh of stale entries, and
// re-keying on authentication transitions. It is the only mutator of the
// page store.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/feedstream/feedcache/pkg/cache"
	"github.com/feedstream/feedcache/pkg/pagination"
	"github.com/feedstream/feedcache/pkg/snapshot"
	"github.com/feedstream/feedcache/pkg/source"
)

// Config holds the coordinator configuration.
type Config[T any] struct {
	// ID extracts an item's unique identity, used to de-duplicate the
	// projected list. Required.
	ID func(T) string

	// TTL is the staleness window: a Ready/Exhausted entry older than this
	// gets a silent refresh on the next subscription. 0 uses cache.DefaultTTL.
	TTL time.Duration

	// Retention is how long untouched entries survive in the store.
	// 0 uses the store default.
	Retention time.Duration

	// Snapshots, when set, warm-starts cold keys from persisted projected
	// lists and persists them after successful fetches. Optional.
	Snapshots *snapshot.Store[T]

	// Logger for coordinator and store events. Nil uses the global logger
	// with a component field.
	Logger *zerolog.Logger
}

// Resource describes one paginated collection the coordinator can load.
type Resource[T any] struct {
	// Strategy selects the pagination scheme and the first cursor.
	Strategy pagination.Strategy

	// Identity marks resources whose content depends on who is asking.
	// Their cache keys carry the auth epoch; others share a constant epoch.
	Identity bool

	// Fetch retrieves one page. Must be idempotent per cursor.
	Fetch source.FetchFunc[T]
}

// Coordinator owns the page store and serializes all loading decisions.
// At most one fetch is in flight per key at any time; completions are fenced
// by the generation captured when the fetch was issued.
type Coordinator[T any] struct {
	store     *cache.Store[T]
	snapshots *snapshot.Store[T]
	id        func(T) string
	ttl       time.Duration
	logger    zerolog.Logger

	// ctx bounds all fetches. Entries are shared across subscribers, so
	// fetches must not run under any one subscriber's context: a view
	// tearing down would otherwise fail the entry for everyone else.
	// Cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// now is the clock; replaced in tests
	now func() time.Time

	mu        sync.Mutex
	resources map[string]Resource[T]
	auth      cache.AuthStatus
	subs      map[uint64]*Subscription[T]
	nextSubID uint64
	known     map[cache.Key]struct{}
}

// New creates a coordinator. The ID extractor is required.
func New[T any](cfg Config[T]) (*Coordinator[T], error) {
	if cfg.ID == nil {
		return nil, fmt.Errorf("item ID extractor is required")
	}

	logger := log.With().Str("component", "feedcache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator[T]{
		store:     cache.NewStore[T](cfg.Retention, logger),
		snapshots: cfg.Snapshots,
		id:        cfg.ID,
		ttl:       ttl,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		resources: make(map[string]Resource[T]),
		auth:      cache.AuthStatus{IsLoading: true},
		subs:      make(map[uint64]*Subscription[T]),
		known:     make(map[cache.Key]struct{}),
	}, nil
}

// Register declares a resource. Must be called before subscribing to it.
func (c *Coordinator[T]) Register(name string, res Resource[T]) error {
	if res.Fetch == nil {
		return fmt.Errorf("resource %q: fetch func is required", name)
	}
	if res.Strategy != pagination.StrategyPageNumbered && res.Strategy != pagination.StrategyOffsetCounted {
		return fmt.Errorf("resource %q: unknown pagination strategy %q", name, res.Strategy)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.resources[name]; dup {
		return fmt.Errorf("resource %q already registered", name)
	}
	c.resources[name] = res
	return nil
}

// SetAuth informs the coordinator of an authentication transition. Entries
// under the previous epoch of identity-dependent resources are invalidated
// immediately (the TTL does not apply to identity changes), and every live
// subscription is re-pointed at its new key. Entries under the new key are
// loaded on demand; the old entries age out of the store.
func (c *Coordinator[T]) SetAuth(auth cache.AuthStatus) {
	c.mu.Lock()
	prev := c.auth
	c.auth = auth
	prevEpoch := prev.Epoch()
	newEpoch := auth.Epoch()

	if prevEpoch == newEpoch {
		c.mu.Unlock()
		return
	}

	var stale []cache.Key
	for k := range c.known {
		if k.AuthEpoch == prevEpoch && k.AuthEpoch != cache.EpochAny {
			stale = append(stale, k)
		}
	}

	type rekeyed struct {
		sub *Subscription[T]
		key cache.Key
	}
	var moved []rekeyed
	for _, sub := range c.subs {
		res, ok := c.resources[sub.resource]
		if !ok || !res.Identity {
			continue
		}
		newKey := cache.Resolve(sub.resource, sub.variant, true, auth)
		if sub.swapKey(newKey) {
			c.known[newKey] = struct{}{}
			moved = append(moved, rekeyed{sub: sub, key: newKey})
		}
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("prev_epoch", prevEpoch).
		Str("new_epoch", newEpoch).
		Int("invalidated", len(stale)).
		Int("rekeyed", len(moved)).
		Msg("Auth transition")

	for _, k := range stale {
		c.store.Invalidate(k)
	}
	for _, m := range moved {
		c.ensureLoaded(m.key)
		m.sub.push(c.snapshotFor(m.key))
	}
}

// ensureLoaded issues the initial fetch for key when the entry is Idle, or a
// silent refresh when it is stale. A no-op while a fetch is in flight or the
// entry is fresh or Failed (failed entries recover only through Retry).
func (c *Coordinator[T]) ensureLoaded(key cache.Key) {
	res, ok := c.resource(key.Resource)
	if !ok {
		return
	}

	entry := c.store.CreateIfAbsent(key)
	gen, ok := entry.BeginInitial(c.now(), c.ttl)
	if !ok {
		return
	}

	fetchesTotal.WithLabelValues(key.Resource, "initial").Inc()
	c.fetch(key, res, gen, res.Strategy.FirstCursor())
}

// loadMore issues the next-page fetch for key. No-op when the entry does not
// exist, is Exhausted or Failed, or already has a fetch in flight. When the
// last page's metadata reports no next cursor the entry transitions to
// Exhausted without fetching.
func (c *Coordinator[T]) loadMore(key cache.Key) {
	res, ok := c.resource(key.Resource)
	if !ok {
		return
	}

	entry := c.store.Get(key)
	if entry == nil {
		return
	}

	gen, cursor, result := entry.BeginMore()
	switch result {
	case cache.MoreExhausted:
		c.publish(key)
	case cache.MoreStarted:
		fetchesTotal.WithLabelValues(key.Resource, "more").Inc()
		c.fetch(key, res, gen, cursor)
	}
}

// retry re-issues the fetch that failed: the initial load when no pages are
// cached, otherwise the next-page fetch. Valid only from Failed; pages cached
// before the failure are never re-fetched.
func (c *Coordinator[T]) retry(key cache.Key) {
	res, ok := c.resource(key.Resource)
	if !ok {
		return
	}

	entry := c.store.Get(key)
	if entry == nil {
		return
	}

	gen, cursor, ok := entry.BeginRetry(res.Strategy.FirstCursor())
	if !ok {
		c.publish(key)
		return
	}

	fetchesTotal.WithLabelValues(key.Resource, "retry").Inc()
	c.fetch(key, res, gen, cursor)
}

// fetch runs the page fetch asynchronously under the coordinator's context
// and applies its completion under the generation captured at issue time.
func (c *Coordinator[T]) fetch(key cache.Key, res Resource[T], gen uint64, cursor int) {
	go func() {
		start := c.now()
		page, err := res.Fetch(c.ctx, key.Variant, cursor)
		fetchDuration.WithLabelValues(key.Resource).Observe(time.Since(start).Seconds())

		if err != nil {
			c.store.MarkFailed(key, gen, err)
			c.publish(key)
			return
		}

		outcome := c.store.AppendPage(key, gen, page, c.now())
		if outcome != cache.ApplyDropped {
			c.saveSnapshot(key)
		}
		c.publish(key)
	}()
}

// saveSnapshot persists the projected list best-effort.
func (c *Coordinator[T]) saveSnapshot(key cache.Key) {
	if c.snapshots == nil {
		return
	}

	entry := c.store.Get(key)
	if entry == nil {
		return
	}
	items := cache.Project(entry, c.id)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.snapshots.Save(ctx, key, items); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Snapshot save failed")
	}
}

// snapshotFor builds the subscriber-facing view of key's entry.
func (c *Coordinator[T]) snapshotFor(key cache.Key) Snapshot[T] {
	entry := c.store.Get(key)
	if entry == nil {
		return Snapshot[T]{Status: cache.StatusIdle}
	}
	return Snapshot[T]{
		Items:   cache.Project(entry, c.id),
		Status:  entry.Status(),
		Err:     entry.Err(),
		HasNext: entry.HasNext(),
	}
}

// publish fans the current view of key out to every subscriber of that key.
func (c *Coordinator[T]) publish(key cache.Key) {
	snap := c.snapshotFor(key)

	c.mu.Lock()
	targets := make([]*Subscription[T], 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.currentKey() == key {
			targets = append(targets, sub)
		}
	}
	c.mu.Unlock()

	for _, sub := range targets {
		sub.push(snap)
	}
}

func (c *Coordinator[T]) resource(name string) (Resource[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.resources[name]
	return res, ok
}

func (c *Coordinator[T]) resolveKey(resource, variant string) cache.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.resources[resource]
	key := cache.Resolve(resource, variant, res.Identity, c.auth)
	c.known[key] = struct{}{}
	return key
}

// Close aborts in-flight fetches, stops the store's eviction loop, and closes
// all subscriptions.
func (c *Coordinator[T]) Close() {
	c.cancel()

	c.mu.Lock()
	subs := make([]*Subscription[T], 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	c.store.Stop()
}
