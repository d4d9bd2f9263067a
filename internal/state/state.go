// Package state defines the simulation's root aggregate.
//
// A State is treated as an immutable value. The two transitions that exist,
// simulator.AdvanceDay and ledger.ExecuteTrade, each build a new State from
// the previous one; nothing else changes it.
package state

import (
	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/model"
	"github.com/marketsim/engine/internal/registry"
)

// State is the full simulation snapshot.
type State struct {
	Balance     decimal.Decimal           `json:"balance"`
	Day         int                       `json:"day"`
	Instruments registry.Registry         `json:"-"`
	Portfolio   map[string]model.Position `json:"portfolio"`
	News        []model.NewsEvent         `json:"news"` // most recent first, at most model.MaxNews
}

// New returns the day-1 state with an empty portfolio and news log.
func New(balance decimal.Decimal, instruments registry.Registry) State {
	return State{
		Balance:     balance,
		Day:         1,
		Instruments: instruments,
		Portfolio:   map[string]model.Position{},
	}
}

// Position returns the holding for symbol, if any.
func (s State) Position(symbol string) (model.Position, bool) {
	p, ok := s.Portfolio[symbol]
	return p, ok
}

// ClonePortfolio returns a copy of the portfolio map that can be modified
// without affecting s.
func (s State) ClonePortfolio() map[string]model.Position {
	out := make(map[string]model.Position, len(s.Portfolio))
	for k, v := range s.Portfolio {
		out[k] = v
	}
	return out
}

// Snapshot is the JSON-friendly view handed to the presentation layer.
type Snapshot struct {
	Balance     decimal.Decimal    `json:"balance"`
	Day         int                `json:"day"`
	Instruments []model.Instrument `json:"instruments"`
	Portfolio   []model.Position   `json:"portfolio"`
	News        []model.NewsEvent  `json:"news"`
}

// Snapshot renders s with instruments and positions ordered by symbol.
func (s State) Snapshot() Snapshot {
	positions := make([]model.Position, 0, len(s.Portfolio))
	for _, sym := range s.Instruments.Symbols() {
		if p, ok := s.Portfolio[sym]; ok {
			positions = append(positions, p)
		}
	}
	news := append([]model.NewsEvent{}, s.News...)
	return Snapshot{
		Balance:     s.Balance,
		Day:         s.Day,
		Instruments: s.Instruments.All(),
		Portfolio:   positions,
		News:        news,
	}
}
