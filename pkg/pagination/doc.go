// Package pagination models the two pagination schemes used by the remote
// source: page-number-based (feeds) and offset/count-based (bookmarks).
//
// Both schemes are expressed as a closed Meta union so that next-page
// computation is exhaustive rather than probing fields on loosely typed
// responses:
//
//	meta := pagination.PageNumbered{Page: 2, TotalPages: 5}
//	if meta.HasNext() {
//		cursor := meta.NextCursor() // 3
//	}
//
// Cursors are plain non-negative integers. PageNumbered cursors start at 1,
// OffsetCounted cursors start at 0; Strategy.FirstCursor encodes that so
// callers never hardcode the starting position.
//
// The functions here are pure and total. Defensive handling of sources that
// misreport their own metadata (for example claiming more pages while
// returning empty ones) lives in the coordinator, not here.
package pagination
