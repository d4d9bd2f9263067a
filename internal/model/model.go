// Package model defines the core domain types shared across the simulation engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxHistory is the length of the sliding price window kept per instrument.
	MaxHistory = 20

	// MaxNews is the number of news events retained in State.News.
	MaxNews = 10
)

// PriceFloor is the lowest price any instrument may reach.
var PriceFloor = decimal.NewFromInt(1)

// Side is the direction of a market order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a supported order side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Instrument is a tradable synthetic stock. Instruments are replaced, not
// mutated in place, on every day-advance.
type Instrument struct {
	Symbol  string            `json:"symbol"`
	Name    string            `json:"name"`
	Sector  string            `json:"sector"`
	Price   decimal.Decimal   `json:"price"`
	History []decimal.Decimal `json:"history"` // oldest first, at most MaxHistory
	Change  decimal.Decimal   `json:"change"`  // percent vs. previous price
}

// Clone returns a copy of i that shares no slices with it.
func (i Instrument) Clone() Instrument {
	out := i
	out.History = append([]decimal.Decimal(nil), i.History...)
	return out
}

// Position is the player's holding in one instrument. A position exists
// only while Shares > 0.
type Position struct {
	Symbol       string          `json:"symbol"`
	Shares       int64           `json:"shares"`
	AveragePrice decimal.Decimal `json:"average_price"` // volume-weighted acquisition cost
}

// NewsEvent is an immutable market headline that biases the sectors it names.
type NewsEvent struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Impact          float64   `json:"impact"` // sentiment in [-1, 1]
	AffectedSectors []string  `json:"affected_sectors"`
	Day             int       `json:"day"`
	Timestamp       time.Time `json:"timestamp"`
}

// Affects reports whether the event targets sector.
func (n NewsEvent) Affects(sector string) bool {
	for _, s := range n.AffectedSectors {
		if s == sector {
			return true
		}
	}
	return false
}

// TradeRecord is an immutable audit record of an executed trade.
// Schema: {id, day, symbol, side, quantity, price, amount, balance_after, timestamp}
type TradeRecord struct {
	ID           string          `json:"id"`
	Day          int             `json:"day"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`  // execution price
	Amount       decimal.Decimal `json:"amount"` // cost for buys, proceeds for sells
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Timestamp    time.Time       `json:"timestamp"`
}
