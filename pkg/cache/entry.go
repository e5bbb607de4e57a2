package cache

import (
	"sync"
	"time"

	"github.com/feedstream/feedcache/pkg/pagination"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	// StatusIdle means no fetch has been issued for the current generation.
	StatusIdle Status = "idle"

	// StatusLoading means the initial page fetch is in flight.
	StatusLoading Status = "loading"

	// StatusLoadingMore means a next-page fetch is in flight.
	StatusLoadingMore Status = "loading_more"

	// StatusReady means at least one page is cached and more may exist.
	StatusReady Status = "ready"

	// StatusExhausted means the last page reported no next cursor.
	StatusExhausted Status = "exhausted"

	// StatusFailed means the most recent fetch failed. Cached pages are
	// retained; further appends are blocked until a deliberate retry.
	StatusFailed Status = "failed"
)

// Entry holds the cached pages and fetch state for one key.
//
// All state is guarded by a per-entry mutex: on a multi-goroutine runtime
// every mutation for a given key must be serialized to keep the append-order
// and generation guarantees. Mutations happen only through the compound
// transition methods below, which decide and update state under one lock
// acquisition so no fetch can be issued against a state another goroutine
// already changed.
type Entry[T any] struct {
	mu sync.Mutex

	pages  []pagination.Page[T]
	status Status
	err    error

	// generation fences late fetch completions: a completion carrying an
	// older generation is dropped, never applied. Incremented on Invalidate
	// and on silent refresh.
	generation uint64

	lastFetched time.Time

	// inflight is the at-most-one-in-flight guard. Status alone cannot serve:
	// a silent refresh keeps the visible status at Ready while a fetch runs.
	inflight bool

	// refreshPending marks a silent refresh: old pages stay visible until the
	// refreshed first page arrives, then are replaced instead of appended.
	refreshPending bool

	// emptyStreak counts consecutive zero-item pages, for defensive
	// termination of sources that misreport their own metadata.
	emptyStreak int
}

func newEntry[T any]() *Entry[T] {
	return &Entry[T]{status: StatusIdle}
}

// Status returns the entry's current status.
func (e *Entry[T]) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Err returns the error of the most recent failure, or nil.
func (e *Entry[T]) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Generation returns the current generation counter.
func (e *Entry[T]) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// LastFetchedAt returns the time of the most recent successful page fetch.
// Zero if no page has been fetched in the current generation.
func (e *Entry[T]) LastFetchedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFetched
}

// PageCount returns the number of cached pages.
func (e *Entry[T]) PageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pages)
}

// HasNext reports whether the source has more items after the cached pages.
// False until the first page arrives.
func (e *Entry[T]) HasNext() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasNextLocked()
}

func (e *Entry[T]) hasNextLocked() bool {
	if len(e.pages) == 0 || e.status == StatusExhausted {
		return false
	}
	return e.pages[len(e.pages)-1].Meta.HasNext()
}

// IsStale reports whether the entry's data is older than ttl at the given
// time. Entries that never fetched successfully are not stale, they are cold.
func (e *Entry[T]) IsStale(now time.Time, ttl time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isStaleLocked(now, ttl)
}

func (e *Entry[T]) isStaleLocked(now time.Time, ttl time.Duration) bool {
	if e.lastFetched.IsZero() {
		return false
	}
	return now.Sub(e.lastFetched) > ttl
}

// BeginInitial claims the entry for an initial page fetch. It starts a fetch
// when the entry is Idle, or when it is Ready/Exhausted but stale at now per
// ttl; the stale case is a silent refresh that bumps the generation while
// keeping the old pages visible until the fresh first page arrives. Returns
// the generation the fetch must report back with. A false return means no
// fetch should be issued (already in flight, failed, or fresh).
func (e *Entry[T]) BeginInitial(now time.Time, ttl time.Duration) (gen uint64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inflight {
		return 0, false
	}

	switch e.status {
	case StatusIdle:
		e.status = StatusLoading
		e.err = nil
	case StatusReady, StatusExhausted:
		if !e.isStaleLocked(now, ttl) {
			return 0, false
		}
		// silent refresh: old results stay visible, late completions of the
		// old generation are fenced out
		e.generation++
		e.refreshPending = true
		e.err = nil
	default:
		return 0, false
	}

	e.inflight = true
	e.emptyStreak = 0
	return e.generation, true
}

// MoreResult describes the outcome of BeginMore.
type MoreResult int

const (
	// MoreNoop means no fetch should be issued and nothing changed.
	MoreNoop MoreResult = iota

	// MoreExhausted means the entry transitioned to Exhausted without a
	// fetch: the last page's metadata reports no next cursor.
	MoreExhausted

	// MoreStarted means a next-page fetch was claimed.
	MoreStarted
)

// BeginMore claims the entry for a next-page fetch. No-op while a fetch is in
// flight, when the entry is Exhausted or Failed, or before the first page has
// arrived. When the last page's metadata reports no next cursor the entry
// transitions to Exhausted and no fetch is issued.
func (e *Entry[T]) BeginMore() (gen uint64, cursor int, res MoreResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inflight || e.status != StatusReady || len(e.pages) == 0 {
		return 0, 0, MoreNoop
	}

	last := e.pages[len(e.pages)-1].Meta
	if !last.HasNext() {
		e.status = StatusExhausted
		return 0, 0, MoreExhausted
	}

	e.status = StatusLoadingMore
	e.inflight = true
	return e.generation, last.NextCursor(), MoreStarted
}

// BeginRetry claims the entry to re-issue the fetch that failed. Valid only
// from Failed. When no pages are cached the retry is the initial fetch and
// the caller supplies the strategy's first cursor; otherwise it is the
// next-page fetch computed from the last cached page.
//
// An entry force-exhausted by a metadata misreport carries an informational
// error; retrying it clears the error without re-fetching, since the walk is
// terminated.
func (e *Entry[T]) BeginRetry(firstCursor int) (gen uint64, cursor int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inflight {
		return 0, 0, false
	}
	if e.status == StatusExhausted && e.err != nil {
		e.err = nil
		return 0, 0, false
	}
	if e.status != StatusFailed {
		return 0, 0, false
	}

	if len(e.pages) == 0 {
		e.status = StatusLoading
		cursor = firstCursor
	} else {
		last := e.pages[len(e.pages)-1].Meta
		if !last.HasNext() {
			// failed refresh of an already complete collection
			e.status = StatusExhausted
			e.err = nil
			return 0, 0, false
		}
		e.status = StatusLoadingMore
		cursor = last.NextCursor()
	}

	e.err = nil
	e.inflight = true
	return e.generation, cursor, true
}

// ApplyOutcome describes what ApplyPage did with a fetch completion.
type ApplyOutcome int

const (
	// ApplyDropped means the completion carried a stale generation and was
	// discarded without touching the entry.
	ApplyDropped ApplyOutcome = iota

	// ApplyAppended means the page was stored and the entry is Ready or
	// Exhausted per the page's metadata.
	ApplyAppended

	// ApplyMisreport means the page was the second consecutive empty one:
	// the entry was terminated as Exhausted despite metadata claiming more.
	ApplyMisreport
)

// ApplyPage applies a successful fetch completion. Completions from an older
// generation are dropped: they belong to an invalidated or refreshed lifetime
// of the key and must never be reordered into the current page list. A
// pending silent refresh replaces the old pages with the fresh first page.
func (e *Entry[T]) ApplyPage(gen uint64, page pagination.Page[T], now time.Time) ApplyOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return ApplyDropped
	}

	if e.refreshPending {
		e.pages = e.pages[:0]
		e.refreshPending = false
	}
	e.pages = append(e.pages, page)
	e.inflight = false
	e.lastFetched = now

	if len(page.Items) == 0 {
		e.emptyStreak++
	} else {
		e.emptyStreak = 0
	}

	// two consecutive empty pages terminate the walk no matter what the
	// source's metadata claims, so a misreporting source cannot make the
	// caller loop forever
	if e.emptyStreak >= emptyPageLimit && page.Meta.HasNext() {
		e.status = StatusExhausted
		e.err = misreportError()
		return ApplyMisreport
	}

	if page.Meta.HasNext() {
		e.status = StatusReady
	} else {
		e.status = StatusExhausted
	}
	e.err = nil
	return ApplyAppended
}

// ApplyFailure applies a failed fetch completion. Same generation discipline
// as ApplyPage. Cached pages are never discarded on failure: a failed
// next-page fetch keeps already rendered content intact.
func (e *Entry[T]) ApplyFailure(gen uint64, err error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return false
	}

	e.inflight = false
	e.refreshPending = false
	e.status = StatusFailed
	e.err = err
	return true
}

// Reset clears the pages, bumps the generation, and returns the entry to
// Idle. Any fetch still in flight for the old generation becomes inert: its
// completion fails the generation check and is dropped.
func (e *Entry[T]) Reset() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pages = nil
	e.generation++
	e.status = StatusIdle
	e.err = nil
	e.inflight = false
	e.refreshPending = false
	e.emptyStreak = 0
	e.lastFetched = time.Time{}
	return e.generation
}
