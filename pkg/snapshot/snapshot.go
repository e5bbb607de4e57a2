// Package snapshot persists projected collection lists to Redis so a cold
// cache can show content immediately on startup while the real initial fetch
// runs.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/feedstream/feedcache/pkg/cache"
)

var (
	// ErrSnapshotMiss indicates no snapshot exists for the key
	ErrSnapshotMiss = errors.New("snapshot miss")

	// ErrInvalidSnapshot indicates the stored snapshot is corrupted
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// record is the stored shape: the projected items plus when they were saved,
// so consumers can show "as of" information if they want to.
type record[T any] struct {
	Items   []T       `json:"items"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists projected lists keyed by query key with a bounded TTL.
// Snapshots are a warm-start convenience, never a source of truth: the
// coordinator always issues a real initial fetch regardless of a snapshot
// hit, and snapshot errors are best-effort logged, never surfaced to the UI.
type Store[T any] struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates a snapshot store. A ttl of 0 defaults to one hour.
func NewStore[T any](redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store[T]{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// Save stores the projected items for key, replacing any previous snapshot.
func (s *Store[T]) Save(ctx context.Context, key cache.Key, items []T) error {
	data, err := json.Marshal(record[T]{Items: items, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	s.logger.Debug().
		Str("key", key.String()).
		Int("items", len(items)).
		Msg("Snapshot saved")
	return nil
}

// Load retrieves the snapshot for key.
// Returns ErrSnapshotMiss when none exists; corrupt snapshots are deleted
// and reported as a miss-shaped ErrInvalidSnapshot.
func (s *Store[T]) Load(ctx context.Context, key cache.Key) ([]T, error) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSnapshotMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec record[T]
	if err := json.Unmarshal(data, &rec); err != nil {
		// self-heal: drop the corrupt snapshot
		_ = s.redis.Del(ctx, s.redisKey(key)).Err()
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	return rec.Items, nil
}

// Delete removes the snapshot for key.
func (s *Store[T]) Delete(ctx context.Context, key cache.Key) error {
	if err := s.redis.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store[T]) redisKey(key cache.Key) string {
	return "snapshot:" + key.String()
}
