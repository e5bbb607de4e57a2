package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/feedstream/feedcache/pkg/pagination"
	"github.com/feedstream/feedcache/pkg/source"
)

type testItem struct {
	ID    string
	Title string
}

func feedPage(meta pagination.Meta, ids ...string) pagination.Page[testItem] {
	items := make([]testItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, testItem{ID: id, Title: "item " + id})
	}
	return pagination.Page[testItem]{Items: items, Meta: meta}
}

func TestEntry_InitialLoad(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	if e.Status() != StatusIdle {
		t.Fatalf("new entry status = %q, want idle", e.Status())
	}

	gen, ok := e.BeginInitial(now, time.Minute)
	if !ok {
		t.Fatal("BeginInitial on idle entry should start a fetch")
	}
	if gen != 0 {
		t.Errorf("first generation = %d, want 0", gen)
	}
	if e.Status() != StatusLoading {
		t.Errorf("status = %q, want loading", e.Status())
	}

	// second claim while in flight is a no-op
	if _, ok := e.BeginInitial(now, time.Minute); ok {
		t.Error("BeginInitial while loading should not start a second fetch")
	}

	outcome := e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 3}, "a", "b"), now)
	if outcome != ApplyAppended {
		t.Fatalf("ApplyPage outcome = %v, want appended", outcome)
	}
	if e.Status() != StatusReady {
		t.Errorf("status = %q, want ready", e.Status())
	}
	if !e.HasNext() {
		t.Error("HasNext should be true with pages remaining")
	}
}

func TestEntry_LoadMoreToExhaustion(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 2}, "a"), now)

	gen, cursor, res := e.BeginMore()
	if res != MoreStarted {
		t.Fatalf("BeginMore result = %v, want started", res)
	}
	if cursor != 2 {
		t.Errorf("cursor = %d, want 2", cursor)
	}
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 2, TotalPages: 2}, "b"), now)

	if e.Status() != StatusExhausted {
		t.Errorf("status = %q, want exhausted", e.Status())
	}
	if e.HasNext() {
		t.Error("HasNext should be false when exhausted")
	}

	// load more on an exhausted entry is a no-op
	if _, _, res := e.BeginMore(); res != MoreNoop {
		t.Errorf("BeginMore on exhausted entry = %v, want noop", res)
	}
}

func TestEntry_BeginMore_NoNextCursor(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	// the only page: metadata reports no next cursor
	e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 1, Returned: 1}, "a"), now)

	if e.Status() != StatusExhausted {
		t.Fatalf("status = %q, want exhausted straight after final page", e.Status())
	}
}

func TestEntry_FailureKeepsPages(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 3}, "a", "b"), now)

	gen, _, _ = e.BeginMore()
	if !e.ApplyFailure(gen, source.ServerError(429, "rate limited")) {
		t.Fatal("ApplyFailure with current generation should apply")
	}

	if e.Status() != StatusFailed {
		t.Errorf("status = %q, want failed", e.Status())
	}
	if e.PageCount() != 1 {
		t.Errorf("pages = %d, want 1 (failure must not discard pages)", e.PageCount())
	}
	if e.Err() == nil {
		t.Error("Err should carry the failure")
	}
}

func TestEntry_RetryAfterFailedLoadMore(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 3}, "a"), now)
	gen, _, _ = e.BeginMore()
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 2, TotalPages: 3}, "b"), now)
	gen, _, _ = e.BeginMore()
	e.ApplyFailure(gen, source.ServerError(500, "boom"))

	// retry re-issues the page-3 fetch, not pages 1-2
	gen, cursor, ok := e.BeginRetry(1)
	if !ok {
		t.Fatal("BeginRetry from failed should start a fetch")
	}
	if cursor != 3 {
		t.Errorf("retry cursor = %d, want 3", cursor)
	}
	if e.Status() != StatusLoadingMore {
		t.Errorf("status = %q, want loading_more", e.Status())
	}

	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 3, TotalPages: 3}, "c"), now)
	if e.Status() != StatusExhausted {
		t.Errorf("status = %q, want exhausted", e.Status())
	}
	if e.PageCount() != 3 {
		t.Errorf("pages = %d, want 3", e.PageCount())
	}
}

func TestEntry_RetryFromEmptyFailure(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	e.ApplyFailure(gen, errors.New("offline"))

	gen, cursor, ok := e.BeginRetry(1)
	if !ok {
		t.Fatal("BeginRetry should start the initial fetch again")
	}
	if cursor != 1 {
		t.Errorf("retry cursor = %d, want first cursor 1", cursor)
	}
	if e.Status() != StatusLoading {
		t.Errorf("status = %q, want loading", e.Status())
	}
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 1}, "a"), now)
	if e.Status() != StatusExhausted {
		t.Errorf("status = %q, want exhausted", e.Status())
	}
}

func TestEntry_RetryInvalidStates(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	if _, _, ok := e.BeginRetry(1); ok {
		t.Error("BeginRetry on idle entry should be a no-op")
	}

	gen, _ := e.BeginInitial(now, time.Minute)
	if _, _, ok := e.BeginRetry(1); ok {
		t.Error("BeginRetry while loading should be a no-op")
	}
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 1}, "a"), now)
	if _, _, ok := e.BeginRetry(1); ok {
		t.Error("BeginRetry on exhausted entry should be a no-op")
	}
}

func TestEntry_GenerationFence(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)

	// invalidation bumps the generation while the fetch is in flight
	newGen := e.Reset()
	if newGen != gen+1 {
		t.Fatalf("generation after reset = %d, want %d", newGen, gen+1)
	}

	outcome := e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 2}, "stale"), now)
	if outcome != ApplyDropped {
		t.Fatalf("late completion outcome = %v, want dropped", outcome)
	}
	if e.PageCount() != 0 {
		t.Error("late completion must not touch the new generation's pages")
	}
	if e.Status() != StatusIdle {
		t.Errorf("status = %q, want idle", e.Status())
	}

	// late failures are fenced identically
	if e.ApplyFailure(gen, errors.New("late")) {
		t.Error("late failure must be dropped")
	}
}

func TestEntry_SilentRefresh(t *testing.T) {
	e := newEntry[testItem]()
	start := time.Now()

	gen, _ := e.BeginInitial(start, time.Minute)
	e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 1}, "old1", "old2"), start)

	// fresh entry: no refresh
	if _, ok := e.BeginInitial(start.Add(30*time.Second), time.Minute); ok {
		t.Fatal("fresh entry should not refresh")
	}

	// stale entry: silent refresh under a new generation, pages kept
	later := start.Add(2 * time.Minute)
	refreshGen, ok := e.BeginInitial(later, time.Minute)
	if !ok {
		t.Fatal("stale entry should begin a silent refresh")
	}
	if refreshGen != gen+1 {
		t.Errorf("refresh generation = %d, want %d", refreshGen, gen+1)
	}
	if e.Status() != StatusExhausted {
		t.Errorf("status during silent refresh = %q, want exhausted (unchanged)", e.Status())
	}
	if e.PageCount() != 1 {
		t.Error("old pages must stay visible until the fresh first page arrives")
	}

	// a late completion from the pre-refresh generation is dropped
	if out := e.ApplyPage(gen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 1}, "zombie"), later); out != ApplyDropped {
		t.Fatalf("pre-refresh completion outcome = %v, want dropped", out)
	}

	// the refreshed first page replaces, not appends
	e.ApplyPage(refreshGen, feedPage(pagination.PageNumbered{Page: 1, TotalPages: 2}, "new1"), later)
	if e.PageCount() != 1 {
		t.Errorf("pages after refresh = %d, want 1 (replaced)", e.PageCount())
	}
	got := Project(e, func(i testItem) string { return i.ID })
	if len(got) != 1 || got[0].ID != "new1" {
		t.Errorf("projected after refresh = %+v, want [new1]", got)
	}
	if e.Status() != StatusReady {
		t.Errorf("status = %q, want ready", e.Status())
	}
}

func TestEntry_ConsecutiveEmptyPages(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	// a source that keeps claiming more data while returning nothing
	gen, _ := e.BeginInitial(now, time.Minute)
	out := e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 10, Returned: 0}), now)
	if out != ApplyAppended {
		t.Fatalf("first empty page outcome = %v, want appended", out)
	}
	if e.Status() != StatusReady {
		t.Fatalf("status after one empty page = %q, want ready", e.Status())
	}

	gen, cursor, res := e.BeginMore()
	if res != MoreStarted {
		t.Fatalf("BeginMore = %v, want started", res)
	}
	if cursor != 0 {
		t.Errorf("cursor = %d, want 0 (offset did not advance)", cursor)
	}

	out = e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 10, Returned: 0}), now)
	if out != ApplyMisreport {
		t.Fatalf("second empty page outcome = %v, want misreport", out)
	}
	if e.Status() != StatusExhausted {
		t.Errorf("status = %q, want exhausted (defensive termination)", e.Status())
	}

	var se *source.Error
	if !errors.As(e.Err(), &se) || se.Class != source.ErrorClassExhaustionMisreport {
		t.Errorf("Err = %v, want exhaustion misreport", e.Err())
	}
}

func TestEntry_RetryClearsMisreportError(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 10, Returned: 0}), now)
	gen, _, _ = e.BeginMore()
	if out := e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 10, Returned: 0}), now); out != ApplyMisreport {
		t.Fatalf("outcome = %v, want misreport", out)
	}

	// the walk is terminated, so retry clears the informational error
	// without issuing a fetch
	if _, _, ok := e.BeginRetry(0); ok {
		t.Fatal("BeginRetry on a misreport-exhausted entry must not claim a fetch")
	}
	if e.Status() != StatusExhausted {
		t.Errorf("status = %q, want exhausted", e.Status())
	}
	if e.Err() != nil {
		t.Errorf("Err after retry = %v, want nil", e.Err())
	}
}

func TestEntry_EmptyStreakResets(t *testing.T) {
	e := newEntry[testItem]()
	now := time.Now()

	gen, _ := e.BeginInitial(now, time.Minute)
	e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 3, Returned: 0}), now)
	gen, _, _ = e.BeginMore()
	// a non-empty page breaks the streak
	e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 0, TotalCount: 3, Returned: 2}, "a", "b"), now)
	gen, _, _ = e.BeginMore()
	out := e.ApplyPage(gen, feedPage(pagination.OffsetCounted{Offset: 2, TotalCount: 4, Returned: 0}), now)

	if out != ApplyAppended {
		t.Errorf("single empty page after non-empty = %v, want appended", out)
	}
	if e.Status() != StatusReady {
		t.Errorf("status = %q, want ready", e.Status())
	}
}
