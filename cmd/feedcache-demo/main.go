// feedcache-demo serves a paginated upstream feed through the coordinator,
// exposing the projected lists over HTTP. It exists to exercise the library
// end to end: point UPSTREAM_URL at any service speaking the demo page shape
// and watch entries fill, page, and refresh.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/feedstream/feedcache/pkg/coordinator"
	"github.com/feedstream/feedcache/pkg/logging"
	"github.com/feedstream/feedcache/pkg/pagination"
	"github.com/feedstream/feedcache/pkg/snapshot"
	"github.com/feedstream/feedcache/pkg/source"
)

type config struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	UpstreamURL string        `env:"UPSTREAM_URL" envDefault:"http://localhost:9090"`
	RedisURL    string        `env:"REDIS_URL"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool          `env:"LOG_PRETTY" envDefault:"false"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	Retention   time.Duration `env:"CACHE_RETENTION" envDefault:"30m"`
}

// feedItem is the demo collection element.
type feedItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// feedPage is the upstream response shape for GET /feed?variant=X&page=N.
type feedPage struct {
	Items      []feedItem `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		panic(fmt.Sprintf("parse config: %v", err))
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)
	logger := logging.NewLogger("feedcache-demo")

	var snapshots *snapshot.Store[feedItem]
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		snapshots = snapshot.NewStore[feedItem](redisClient, time.Hour, logging.NewLogger("snapshot"))
		logger.Info().Str("redis_url", cfg.RedisURL).Msg("Snapshot warm-start enabled")
	}

	coord, err := coordinator.New(coordinator.Config[feedItem]{
		ID:        func(i feedItem) string { return i.ID },
		TTL:       cfg.CacheTTL,
		Retention: cfg.Retention,
		Snapshots: snapshots,
		Logger:    &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create coordinator")
	}
	defer coord.Close()

	fetch := upstreamFetch(cfg.UpstreamURL, &http.Client{Timeout: 15 * time.Second})
	if err := coord.Register("feed", coordinator.Resource[feedItem]{
		Strategy: pagination.StrategyPageNumbered,
		Fetch:    fetch,
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register feed resource")
	}

	srv := newFeedServer(coord)
	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/feed/", srv.handleFeed)

	addr := ":" + cfg.Port
	logger.Info().
		Str("addr", addr).
		Str("upstream", cfg.UpstreamURL).
		Msg("Starting feedcache demo server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// upstreamFetch builds the page fetch against the demo upstream. Transport
// failures map to the network class, non-200 responses to the server class.
func upstreamFetch(baseURL string, client *http.Client) source.FetchFunc[feedItem] {
	return func(ctx context.Context, variant string, cursor int) (pagination.Page[feedItem], error) {
		url := fmt.Sprintf("%s/feed?variant=%s&page=%d", baseURL, variant, cursor)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return pagination.Page[feedItem]{}, source.NetworkError("build request", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return pagination.Page[feedItem]{}, source.NetworkError("upstream request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return pagination.Page[feedItem]{}, source.ServerError(resp.StatusCode, "upstream returned non-200")
		}

		var page feedPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return pagination.Page[feedItem]{}, source.NetworkError("decode upstream page", err)
		}

		return pagination.Page[feedItem]{
			Items: page.Items,
			Meta:  pagination.PageNumbered{Page: page.Page, TotalPages: page.TotalPages},
		}, nil
	}
}

// feedServer holds one long-lived subscription per variant. A real frontend
// would hold subscriptions itself; the demo keeps them server-side so plain
// HTTP requests can observe the cache filling up.
type feedServer struct {
	coord *coordinator.Coordinator[feedItem]

	mu   sync.Mutex
	subs map[string]*coordinator.Subscription[feedItem]
}

func newFeedServer(coord *coordinator.Coordinator[feedItem]) *feedServer {
	return &feedServer{
		coord: coord,
		subs:  make(map[string]*coordinator.Subscription[feedItem]),
	}
}

// feedResponse is the demo's rendered view of a subscription snapshot.
type feedResponse struct {
	Variant string     `json:"variant"`
	Status  string     `json:"status"`
	Items   []feedItem `json:"items"`
	HasNext bool       `json:"has_next"`
	Error   string     `json:"error,omitempty"`
}

// handleFeed serves GET /feed/{variant}. Query params:
//
//	?more=1   request the next page
//	?retry=1  retry after a failure
func (s *feedServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	variant := strings.TrimPrefix(r.URL.Path, "/feed/")
	if variant == "" || strings.Contains(variant, "/") {
		http.Error(w, "usage: /feed/{variant}", http.StatusBadRequest)
		return
	}

	sub, err := s.subscription(variant)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch {
	case r.URL.Query().Get("more") == "1":
		sub.LoadMore()
	case r.URL.Query().Get("retry") == "1":
		sub.Retry()
	}

	snap := sub.Current()
	resp := feedResponse{
		Variant: variant,
		Status:  string(snap.Status),
		Items:   snap.Items,
		HasNext: snap.HasNext,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *feedServer) subscription(variant string) (*coordinator.Subscription[feedItem], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[variant]; ok {
		return sub, nil
	}
	sub, err := s.coord.Subscribe(context.Background(), "feed", variant)
	if err != nil {
		return nil, err
	}
	s.subs[variant] = sub
	return sub, nil
}
