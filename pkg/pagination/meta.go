package pagination

// Meta is the pagination metadata attached to a fetched page.
//
// It is a closed union: the only implementations are PageNumbered (feeds,
// 1-based page numbers) and OffsetCounted (bookmarks, 0-based offsets).
// Both answer the same two questions: is there a next page, and which
// cursor requests it.
type Meta interface {
	// HasNext reports whether the source has more items after this page.
	HasNext() bool

	// NextCursor returns the cursor that requests the page after this one.
	// The result is meaningful only when HasNext is true.
	NextCursor() int

	// sealed prevents implementations outside this package so that
	// consumers can match exhaustively on the two variants.
	sealed()
}

// PageNumbered is page-number pagination: pages are numbered from 1 and the
// source reports the total page count alongside each page.
type PageNumbered struct {
	// Page is the 1-based number of this page.
	Page int

	// TotalPages is the total number of pages the source currently reports.
	TotalPages int
}

// HasNext reports whether pages beyond this one exist.
func (m PageNumbered) HasNext() bool {
	return m.Page < m.TotalPages
}

// NextCursor returns the number of the following page.
func (m PageNumbered) NextCursor() int {
	return m.Page + 1
}

func (PageNumbered) sealed() {}

// OffsetCounted is offset/count pagination: the source reports the offset this
// page was fetched at, the number of items actually returned, and the total
// item count.
type OffsetCounted struct {
	// Offset is the 0-based position this page starts at.
	Offset int

	// TotalCount is the total number of items the source currently reports.
	TotalCount int

	// Returned is the number of items in this page.
	Returned int
}

// HasNext reports whether items beyond this page exist.
func (m OffsetCounted) HasNext() bool {
	return m.Offset+m.Returned < m.TotalCount
}

// NextCursor returns the offset immediately after this page.
func (m OffsetCounted) NextCursor() int {
	return m.Offset + m.Returned
}

func (OffsetCounted) sealed() {}

// Page is one fetched batch of items together with its pagination metadata.
// Items preserve server order; the cache appends pages and never reorders them.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// Strategy names a pagination scheme and knows where a fresh walk starts.
type Strategy string

const (
	// StrategyPageNumbered uses 1-based page numbers (feeds).
	StrategyPageNumbered Strategy = "page_numbered"

	// StrategyOffsetCounted uses 0-based item offsets (bookmarks).
	StrategyOffsetCounted Strategy = "offset_counted"
)

// FirstCursor returns the cursor for the initial fetch of the strategy.
func (s Strategy) FirstCursor() int {
	if s == StrategyPageNumbered {
		return 1
	}
	return 0
}
