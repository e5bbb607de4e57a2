// Package testutil provides testing utilities for the feedcache library.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/feedstream/feedcache/pkg/pagination"
	"github.com/feedstream/feedcache/pkg/source"
)

// Item is the test item type used across the test suites and the demo.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Items builds n items with deterministic ids derived from prefix.
func Items(prefix string, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Title: fmt.Sprintf("Item %s %d", prefix, i),
		}
	}
	return items
}

// Call records one fetch issued against a scripted source.
type Call struct {
	Variant string
	Cursor  int
}

// ScriptedSource is a fetch capability driven by a script of per-cursor
// responses. Fetches complete synchronously; use BlockingSource when a test
// needs to hold a fetch in flight.
type ScriptedSource struct {
	mu      sync.Mutex
	pages   map[string]pagination.Page[Item]
	errs    map[string]error
	calls   []Call
}

// NewScriptedSource creates an empty scripted source.
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{
		pages: make(map[string]pagination.Page[Item]),
		errs:  make(map[string]error),
	}
}

func scriptKey(variant string, cursor int) string {
	return variant + "/" + strconv.Itoa(cursor)
}

// Page scripts a successful response for (variant, cursor).
func (s *ScriptedSource) Page(variant string, cursor int, page pagination.Page[Item]) *ScriptedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[scriptKey(variant, cursor)] = page
	delete(s.errs, scriptKey(variant, cursor))
	return s
}

// Fail scripts a failure for (variant, cursor).
func (s *ScriptedSource) Fail(variant string, cursor int, err error) *ScriptedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[scriptKey(variant, cursor)] = err
	return s
}

// Fetch implements source.FetchFunc[Item].
func (s *ScriptedSource) Fetch(_ context.Context, variant string, cursor int) (pagination.Page[Item], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Variant: variant, Cursor: cursor})

	k := scriptKey(variant, cursor)
	if err, ok := s.errs[k]; ok {
		return pagination.Page[Item]{}, err
	}
	if page, ok := s.pages[k]; ok {
		return page, nil
	}
	return pagination.Page[Item]{}, source.ServerError(http.StatusNotFound, "unscripted cursor "+k)
}

// Calls returns a copy of the fetches issued so far.
func (s *ScriptedSource) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of fetches issued so far.
func (s *ScriptedSource) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// PendingFetch is one in-flight fetch held by a BlockingSource. The test
// completes it by calling Resolve or Reject exactly once.
type PendingFetch struct {
	Variant string
	Cursor  int

	page pagination.Page[Item]
	err  error
	done chan struct{}
}

// Resolve completes the fetch successfully.
func (p *PendingFetch) Resolve(page pagination.Page[Item]) {
	p.page = page
	close(p.done)
}

// Reject completes the fetch with an error.
func (p *PendingFetch) Reject(err error) {
	p.err = err
	close(p.done)
}

// BlockingSource is a fetch capability whose calls block until the test
// releases them, so tests can observe and interleave in-flight states
// deterministically.
type BlockingSource struct {
	// Started receives every fetch as it begins.
	Started chan *PendingFetch
}

// NewBlockingSource creates a blocking source with room for buffered pending
// fetches so issuing a fetch never deadlocks the coordinator goroutine.
func NewBlockingSource() *BlockingSource {
	return &BlockingSource{Started: make(chan *PendingFetch, 16)}
}

// Fetch implements source.FetchFunc[Item].
func (b *BlockingSource) Fetch(ctx context.Context, variant string, cursor int) (pagination.Page[Item], error) {
	p := &PendingFetch{
		Variant: variant,
		Cursor:  cursor,
		done:    make(chan struct{}),
	}
	b.Started <- p

	select {
	case <-p.done:
		return p.page, p.err
	case <-ctx.Done():
		return pagination.Page[Item]{}, source.NetworkError("fetch cancelled", ctx.Err())
	}
}

// feedPageResponse is the wire shape served by MockFeedServer.
type feedPageResponse struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
}

// MockFeedServer is an httptest server that serves a page-numbered feed,
// for tests and demos that want a real HTTP round trip.
type MockFeedServer struct {
	server *httptest.Server

	mu       sync.RWMutex
	variants map[string][][]Item

	// RequestCount tracks the number of page requests served.
	RequestCount int
}

// NewMockFeedServer creates a server with no variants; add them with SetPages
// or SeedVariant.
func NewMockFeedServer() *MockFeedServer {
	m := &MockFeedServer{variants: make(map[string][][]Item)}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		variant := r.URL.Query().Get("variant")
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		m.RequestCount++
		pages, ok := m.variants[variant]
		m.mu.Unlock()

		if !ok {
			http.Error(w, "unknown variant", http.StatusNotFound)
			return
		}

		resp := feedPageResponse{Page: page, TotalPages: len(pages)}
		if page <= len(pages) {
			resp.Items = pages[page-1]
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))

	return m
}

// SetPages installs the page script for a variant.
func (m *MockFeedServer) SetPages(variant string, pages [][]Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[variant] = pages
}

// SeedVariant fills a variant with pageCount pages of pageSize random items.
func (m *MockFeedServer) SeedVariant(variant string, pageCount, pageSize int) {
	pages := make([][]Item, pageCount)
	for p := range pages {
		items := make([]Item, pageSize)
		for i := range items {
			items[i] = Item{
				ID:    uuid.NewString(),
				Title: fmt.Sprintf("%s page %d item %d", variant, p+1, i),
			}
		}
		pages[p] = items
	}
	m.SetPages(variant, pages)
}

// URL returns the server's base URL.
func (m *MockFeedServer) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockFeedServer) Close() {
	m.server.Close()
}

// FetchFunc returns a source.FetchFunc backed by this server, translating
// HTTP failures into the source error taxonomy.
func (m *MockFeedServer) FetchFunc(client *http.Client) source.FetchFunc[Item] {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, variant string, cursor int) (pagination.Page[Item], error) {
		url := fmt.Sprintf("%s/?variant=%s&page=%d", m.URL(), variant, cursor)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return pagination.Page[Item]{}, source.NetworkError("create request", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return pagination.Page[Item]{}, source.NetworkError("fetch page", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return pagination.Page[Item]{}, source.ServerError(resp.StatusCode, resp.Status)
		}

		var decoded feedPageResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return pagination.Page[Item]{}, source.NetworkError("decode page", err)
		}

		return pagination.Page[Item]{
			Items: decoded.Items,
			Meta:  pagination.PageNumbered{Page: decoded.Page, TotalPages: decoded.TotalPages},
		}, nil
	}
}
