package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketsim/engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache of the most recent DefaultListLimit trades and news events. Writes
// go to the primary store and invalidate the cache; reads check Redis first
// then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertTrade(ctx context.Context, rec *model.TradeRecord) error {
	if err := s.primary.InsertTrade(ctx, rec); err != nil {
		return err
	}
	s.rdb.Del(ctx, recentTradesKey, symbolTradesKey(rec.Symbol))
	return nil
}

func (s *CachedStore) InsertNews(ctx context.Context, ev model.NewsEvent) error {
	if err := s.primary.InsertNews(ctx, ev); err != nil {
		return err
	}
	s.rdb.Del(ctx, recentNewsKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	return readThrough(ctx, s, recentTradesKey, limit, func(n int) ([]model.TradeRecord, error) {
		return s.primary.ListTrades(ctx, n)
	})
}

func (s *CachedStore) ListTradesBySymbol(ctx context.Context, symbol string, limit int) ([]model.TradeRecord, error) {
	return readThrough(ctx, s, symbolTradesKey(symbol), limit, func(n int) ([]model.TradeRecord, error) {
		return s.primary.ListTradesBySymbol(ctx, symbol, n)
	})
}

func (s *CachedStore) ListNews(ctx context.Context, limit int) ([]model.NewsEvent, error) {
	return readThrough(ctx, s, recentNewsKey, limit, func(n int) ([]model.NewsEvent, error) {
		return s.primary.ListNews(ctx, n)
	})
}

// readThrough serves the newest DefaultListLimit records of key from Redis,
// loading them from the primary on a miss. Larger limits bypass the cache.
func readThrough[T any](ctx context.Context, s *CachedStore, key string, limit int, load func(n int) ([]T, error)) ([]T, error) {
	limit = normalizeLimit(limit)
	if limit > DefaultListLimit {
		return load(limit)
	}

	// Try cache.
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached []T
		if json.Unmarshal(data, &cached) == nil {
			return truncate(cached, limit), nil
		}
	}

	// Cache miss: read from primary.
	records, err := load(DefaultListLimit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return truncate(records, limit), nil
}

func truncate[T any](records []T, limit int) []T {
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

// --- Cache keys ---

const (
	recentTradesKey = "marketsim:trades:recent"
	recentNewsKey   = "marketsim:news:recent"
)

func symbolTradesKey(symbol string) string { return fmt.Sprintf("marketsim:trades:symbol:%s", symbol) }
