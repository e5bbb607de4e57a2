// Package source defines the contract between the cache and the remote data
// source: a per-cursor page fetch plus the error taxonomy the coordinator
// understands.
package source

import (
	"context"

	"github.com/feedstream/feedcache/pkg/pagination"
)

// FetchFunc fetches one page of a resource variant at the given cursor.
//
// The cursor follows the resource's pagination strategy (1-based page number
// or 0-based offset). Implementations must be idempotent for the same cursor:
// the coordinator re-issues the same logical fetch on retry. Failures should
// be returned as *Error so they classify cleanly; any other error is treated
// as a network failure.
type FetchFunc[T any] func(ctx context.Context, variant string, cursor int) (pagination.Page[T], error)
