package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/feedstream/feedcache/internal/testutil"
	"github.com/feedstream/feedcache/pkg/coordinator"
	"github.com/feedstream/feedcache/pkg/pagination"
)

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "feedcache_subscriptions") {
		t.Error("Expected metrics output to contain feedcache_subscriptions")
	}
}

func newDemoServer(t *testing.T, upstream *testutil.MockFeedServer) *feedServer {
	t.Helper()

	logger := zerolog.Nop()
	coord, err := coordinator.New(coordinator.Config[feedItem]{
		ID:     func(i feedItem) string { return i.ID },
		Logger: &logger,
	})
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	t.Cleanup(coord.Close)

	fetch := upstreamFetch(upstream.URL(), &http.Client{Timeout: 5 * time.Second})
	if err := coord.Register("feed", coordinator.Resource[feedItem]{
		Strategy: pagination.StrategyPageNumbered,
		Fetch:    fetch,
	}); err != nil {
		t.Fatalf("Failed to register resource: %v", err)
	}

	return newFeedServer(coord)
}

func getFeed(t *testing.T, srv *feedServer, target string) feedResponse {
	t.Helper()

	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	srv.handleFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s returned status %d", target, resp.StatusCode)
	}

	var out feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

// pollFeed re-requests until pred matches; fetches complete asynchronously.
func pollFeed(t *testing.T, srv *feedServer, target string, pred func(feedResponse) bool) feedResponse {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out := getFeed(t, srv, target)
		if pred(out) {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out polling %s", target)
	return feedResponse{}
}

func TestHandleFeed_ServesPages(t *testing.T) {
	upstream := testutil.NewMockFeedServer()
	defer upstream.Close()
	upstream.SeedVariant("latest", 2, 5)

	srv := newDemoServer(t, upstream)

	out := pollFeed(t, srv, "/feed/latest", func(r feedResponse) bool {
		return r.Status == "ready"
	})
	if len(out.Items) != 5 {
		t.Errorf("Expected 5 items after first page, got %d", len(out.Items))
	}
	if !out.HasNext {
		t.Error("Expected has_next after page 1 of 2")
	}

	// request the next page, then poll until it lands
	getFeed(t, srv, "/feed/latest?more=1")
	out = pollFeed(t, srv, "/feed/latest", func(r feedResponse) bool {
		return r.Status == "exhausted"
	})
	if len(out.Items) != 10 {
		t.Errorf("Expected 10 items after both pages, got %d", len(out.Items))
	}
	if out.HasNext {
		t.Error("Expected has_next false when exhausted")
	}
}

func TestHandleFeed_BadPath(t *testing.T) {
	upstream := testutil.NewMockFeedServer()
	defer upstream.Close()

	srv := newDemoServer(t, upstream)

	req := httptest.NewRequest("GET", "/feed/", nil)
	w := httptest.NewRecorder()
	srv.handleFeed(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing variant, got %d", w.Result().StatusCode)
	}
}
