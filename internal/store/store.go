// Package store records the game's audit trail: executed trades and the
// news published each day. Implementations include PostgreSQL, a Redis
// read-through cache over it, and in-memory (default and for testing).
//
// The trail is write-mostly and read only for display. It is never used to
// rebuild a game; each process starts a fresh session.
package store

import (
	"context"
	"errors"

	"github.com/marketsim/engine/internal/model"
)

// ErrDuplicateID is returned when a record with the same ID already exists.
var ErrDuplicateID = errors.New("store: duplicate record id")

// DefaultListLimit is used when a non-positive limit is passed to a List call.
const DefaultListLimit = 100

// Store is the audit trail interface.
type Store interface {
	// --- Immutable trade journal ---

	// InsertTrade appends an executed trade.
	InsertTrade(ctx context.Context, rec *model.TradeRecord) error

	// ListTrades returns up to limit trades, most recent first.
	ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)

	// ListTradesBySymbol returns up to limit trades for symbol, most recent first.
	ListTradesBySymbol(ctx context.Context, symbol string, limit int) ([]model.TradeRecord, error)

	// --- News archive ---

	// InsertNews appends a published news event.
	InsertNews(ctx context.Context, ev model.NewsEvent) error

	// ListNews returns up to limit news events, most recent first.
	ListNews(ctx context.Context, limit int) ([]model.NewsEvent, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
