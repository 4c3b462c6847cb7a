// Package redis implements the signal-state stores (recently-viewed logs and
// the trending snapshot) on Redis, for deployments where aggregator state
// should live outside the durable database.
package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scrypster/shoprec/internal/storage"
)

const (
	recentKeyPrefix    = "shoprec:recent:"
	trendingKey        = "shoprec:trending"
	trendingWindowKey  = "shoprec:trending:window_start"
	trendingStagingKey = "shoprec:trending:staging"
)

// SignalStore implements storage.RecentStore and storage.TrendingStore on a
// Redis client. Recency logs are lists with LREM/LPUSH/LTRIM move-to-front
// semantics; the trending snapshot is a sorted set staged under a temporary
// key and swapped in with RENAME so readers never see a partial snapshot.
type SignalStore struct {
	client *redis.Client
}

// NewSignalStore connects to Redis and verifies the connection.
func NewSignalStore(addr, password string, db int) (*SignalStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}
	return &SignalStore{client: client}, nil
}

// RecordView applies move-to-front semantics in one MULTI/EXEC block:
// remove any prior occurrence, push to the front, truncate to cap.
func (s *SignalStore) RecordView(ctx context.Context, subjectID, productID string, _ time.Time, cap int) error {
	if subjectID == "" {
		return fmt.Errorf("%w: subject ID is required", storage.ErrInvalidInput)
	}
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if cap <= 0 {
		cap = 20
	}

	key := recentKeyPrefix + subjectID
	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, key, 0, productID)
	pipe.LPush(ctx, key, productID)
	pipe.LTrim(ctx, key, 0, int64(cap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to record view: %w", err)
	}
	return nil
}

// Recent returns up to limit product IDs for the subject, most recent first.
func (s *SignalStore) Recent(ctx context.Context, subjectID string, limit int) ([]string, error) {
	if subjectID == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	ids, err := s.client.LRange(ctx, recentKeyPrefix+subjectID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read recency log: %w", err)
	}
	return ids, nil
}

// ReplaceSnapshot writes the new ranking to a staging sorted set and RENAMEs
// it over the live key, so the previous snapshot stays readable until the
// swap and a crash mid-recompute leaves it intact.
func (s *SignalStore) ReplaceSnapshot(ctx context.Context, entries []storage.TrendingEntry, windowStart time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, trendingStagingKey)
	for _, e := range entries {
		pipe.ZAdd(ctx, trendingStagingKey, redis.Z{Score: e.Score, Member: e.ProductID})
	}
	pipe.Set(ctx, trendingWindowKey, windowStart.UTC().Format(time.RFC3339Nano), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to stage trending snapshot: %w", err)
	}

	if len(entries) == 0 {
		// RENAME fails on a missing source key; an empty snapshot is just a DEL.
		if err := s.client.Del(ctx, trendingKey).Err(); err != nil {
			return fmt.Errorf("redis: failed to clear trending snapshot: %w", err)
		}
		return nil
	}

	if err := s.client.Rename(ctx, trendingStagingKey, trendingKey).Err(); err != nil {
		return fmt.Errorf("redis: failed to swap trending snapshot: %w", err)
	}
	return nil
}

// Snapshot returns the last committed snapshot, score descending with
// product-ID-ascending tie-break. Redis orders sorted-set ties by member in
// the direction of the scan, so the full set is re-sorted in Go to keep the
// tie-break deterministic.
func (s *SignalStore) Snapshot(ctx context.Context, limit int) ([]storage.TrendingEntry, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, trendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read trending snapshot: %w", err)
	}

	windowStart := time.Time{}
	if raw, err := s.client.Get(ctx, trendingWindowKey).Result(); err == nil {
		if parsed, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			windowStart = parsed
		}
	}

	entries := make([]storage.TrendingEntry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, storage.TrendingEntry{
			ProductID:   member,
			Score:       z.Score,
			WindowStart: windowStart,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ProductID < entries[j].ProductID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Close closes the Redis client.
func (s *SignalStore) Close() error {
	return s.client.Close()
}

// Compile-time assertions.
var (
	_ storage.RecentStore   = (*SignalStore)(nil)
	_ storage.TrendingStore = (*SignalStore)(nil)
)
