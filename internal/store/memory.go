package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketsim/engine/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used by default and
// for testing.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []model.TradeRecord
	news   []model.NewsEvent
	ids    map[string]bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]bool)}
}

func (s *MemoryStore) InsertTrade(_ context.Context, rec *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[rec.ID] {
		return fmt.Errorf("%w: trade %s", ErrDuplicateID, rec.ID)
	}
	s.ids[rec.ID] = true
	s.trades = append(s.trades, *rec)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, limit int) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return newestTrades(s.trades, normalizeLimit(limit), func(model.TradeRecord) bool { return true }), nil
}

func (s *MemoryStore) ListTradesBySymbol(_ context.Context, symbol string, limit int) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return newestTrades(s.trades, normalizeLimit(limit), func(r model.TradeRecord) bool {
		return r.Symbol == symbol
	}), nil
}

func (s *MemoryStore) InsertNews(_ context.Context, ev model.NewsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[ev.ID] {
		return fmt.Errorf("%w: news %s", ErrDuplicateID, ev.ID)
	}
	s.ids[ev.ID] = true
	ev.AffectedSectors = append([]string{}, ev.AffectedSectors...)
	s.news = append(s.news, ev)
	return nil
}

func (s *MemoryStore) ListNews(_ context.Context, limit int) ([]model.NewsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	out := []model.NewsEvent{}
	for i := len(s.news) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.news[i])
	}
	return out, nil
}

// newestTrades walks trades backwards, keeping matches until limit.
func newestTrades(trades []model.TradeRecord, limit int, match func(model.TradeRecord) bool) []model.TradeRecord {
	out := []model.TradeRecord{}
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		if match(trades[i]) {
			out = append(out, trades[i])
		}
	}
	return out
}
