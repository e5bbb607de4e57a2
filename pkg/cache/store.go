package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"github.com/feedstream/feedcache/pkg/pagination"
	"github.com/feedstream/feedcache/pkg/source"
)

// emptyPageLimit is the number of consecutive zero-item pages after which a
// walk is terminated regardless of the source's metadata.
const emptyPageLimit = 2

// defaultRetention is how long an untouched entry survives before the
// container evicts it.
const defaultRetention = 30 * time.Minute

func misreportError() error {
	return &source.Error{
		Class:   source.ErrorClassExhaustionMisreport,
		Message: "two consecutive empty pages despite metadata claiming more",
	}
}

// Store holds one Entry per key. Entries are created lazily on first use and
// evicted after a retention period without access, so keys of dead auth
// epochs age out on their own. The store never reorders or merges entries;
// all per-entry consistency lives in Entry.
type Store[T any] struct {
	entries *ttlcache.Cache[string, *Entry[T]]
	logger  zerolog.Logger
}

// NewStore creates a store whose entries are evicted after retention without
// access. A retention of 0 uses the default of 30 minutes.
func NewStore[T any](retention time.Duration, logger zerolog.Logger) *Store[T] {
	if retention <= 0 {
		retention = defaultRetention
	}

	entries := ttlcache.New[string, *Entry[T]](
		ttlcache.WithTTL[string, *Entry[T]](retention),
	)
	entries.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *Entry[T]]) {
		entriesEvicted.Inc()
		logger.Debug().Str("key", item.Key()).Msg("Entry evicted")
	})
	go entries.Start()

	return &Store[T]{
		entries: entries,
		logger:  logger,
	}
}

// Get returns the entry for key, or nil when absent. No side effects beyond
// refreshing the entry's retention.
func (s *Store[T]) Get(key Key) *Entry[T] {
	item := s.entries.Get(key.String())
	if item == nil {
		return nil
	}
	return item.Value()
}

// CreateIfAbsent returns the entry for key, inserting a fresh Idle entry with
// generation 0 when none exists.
func (s *Store[T]) CreateIfAbsent(key Key) *Entry[T] {
	item, existed := s.entries.GetOrSet(key.String(), newEntry[T]())
	if !existed {
		entriesCreated.Inc()
		s.logger.Debug().Str("key", key.String()).Msg("Entry created")
	}
	return item.Value()
}

// AppendPage applies a successful page fetch for the given generation.
// A completion whose generation no longer matches the entry's is discarded:
// it raced an invalidation or a silent refresh.
func (s *Store[T]) AppendPage(key Key, gen uint64, page pagination.Page[T], now time.Time) ApplyOutcome {
	entry := s.Get(key)
	if entry == nil {
		return ApplyDropped
	}

	outcome := entry.ApplyPage(gen, page, now)
	switch outcome {
	case ApplyDropped:
		lateDrops.Inc()
		s.logger.Debug().
			Str("key", key.String()).
			Uint64("gen", gen).
			Msg("Dropped late page (generation mismatch)")
	case ApplyMisreport:
		// the page itself is still stored
		pagesAppended.Inc()
		exhaustionMisreports.Inc()
		s.logger.Warn().
			Str("key", key.String()).
			Msg("Source metadata misreport - walk terminated")
	default:
		pagesAppended.Inc()
		s.logger.Debug().
			Str("key", key.String()).
			Uint64("gen", gen).
			Int("items", len(page.Items)).
			Str("status", string(entry.Status())).
			Msg("Page appended")
	}
	return outcome
}

// MarkFailed applies a failed fetch for the given generation, with the same
// generation discipline as AppendPage. Cached pages are retained.
func (s *Store[T]) MarkFailed(key Key, gen uint64, err error) bool {
	entry := s.Get(key)
	if entry == nil {
		return false
	}

	applied := entry.ApplyFailure(gen, err)
	if !applied {
		lateDrops.Inc()
		s.logger.Debug().
			Str("key", key.String()).
			Uint64("gen", gen).
			Msg("Dropped late failure (generation mismatch)")
		return false
	}

	fetchFailures.WithLabelValues(string(source.Classify(err))).Inc()
	s.logger.Warn().
		Err(err).
		Str("key", key.String()).
		Uint64("gen", gen).
		Msg("Fetch failed")
	return true
}

// Invalidate clears the entry's pages, bumps its generation, and returns the
// entry to Idle. No-op when the key has no entry.
func (s *Store[T]) Invalidate(key Key) {
	entry := s.Get(key)
	if entry == nil {
		return
	}

	newGen := entry.Reset()
	invalidations.Inc()
	s.logger.Debug().
		Str("key", key.String()).
		Uint64("new_gen", newGen).
		Msg("Entry invalidated")
}

// Keys returns the string form of every live key. Used to find entries of
// dead auth epochs on authentication transitions.
func (s *Store[T]) Keys() []string {
	return s.entries.Keys()
}

// Delete removes the entry for key outright.
func (s *Store[T]) Delete(key Key) {
	s.entries.Delete(key.String())
}

// Stop halts the container's eviction loop.
func (s *Store[T]) Stop() {
	s.entries.Stop()
}
