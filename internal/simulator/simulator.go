// Package simulator advances the market by one trading day.
//
// Each instrument moves by a uniform random base volatility in
// [-BaseVolatility, +BaseVolatility), plus Impact × NewsWeight when the day's
// news targets its sector. Prices are floored at model.PriceFloor and rounded
// to cents.
package simulator

import (
	"context"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/model"
	"github.com/marketsim/engine/internal/news"
	"github.com/marketsim/engine/internal/state"
)

const (
	// BaseVolatility is the half-width of the daily random swing (2.5%).
	BaseVolatility = 0.025

	// NewsWeight scales a news event's impact into extra volatility (up to 8%).
	NewsWeight = 0.08

	priceScale int32 = 2
)

var hundred = decimal.NewFromInt(100)

// Simulator is not safe for concurrent use; callers serialize commands.
type Simulator struct {
	news news.Generator
	rng  *rand.Rand
}

// New creates a simulator drawing volatility from rng. Seeding rng makes a
// run reproducible given the same news.
func New(gen news.Generator, rng *rand.Rand) *Simulator {
	return &Simulator{news: gen, rng: rng}
}

// AdvanceDay returns the state for the next day. It cannot fail: the news
// generator always yields an event and prices are clamped to the floor.
// Balance and portfolio are carried over unchanged.
func (s *Simulator) AdvanceDay(ctx context.Context, st state.State) state.State {
	ev := s.news.Generate(ctx, st.Day+1, st.Instruments.Sectors())

	current := st.Instruments.All()
	updated := make([]model.Instrument, len(current))
	for i, inst := range current {
		vol := (s.rng.Float64()*2 - 1) * BaseVolatility
		if ev.Affects(inst.Sector) {
			vol += ev.Impact * NewsWeight
		}
		updated[i] = Reprice(inst, vol)
	}

	instruments, err := st.Instruments.Replace(updated)
	if err != nil {
		// updated is built from the registry's own members.
		panic(err)
	}

	next := st
	next.Day = st.Day + 1
	next.Instruments = instruments
	next.News = PrependNews(st.News, ev)
	return next
}

// Reprice applies a fractional volatility to inst and returns the new
// instrument with its price, bounded history and change updated.
func Reprice(inst model.Instrument, volatility float64) model.Instrument {
	old := inst.Price
	newPrice := old.Mul(decimal.NewFromFloat(1 + volatility))
	newPrice = decimal.Max(model.PriceFloor, newPrice).Round(priceScale)

	out := inst.Clone()
	out.Price = newPrice
	out.History = AppendHistory(inst.History, newPrice)
	if old.IsPositive() {
		out.Change = newPrice.Sub(old).Div(old).Mul(hundred).Round(priceScale)
	} else {
		out.Change = decimal.Zero
	}
	return out
}

// AppendHistory appends price and keeps the newest model.MaxHistory entries.
// The input slice is never modified.
func AppendHistory(history []decimal.Decimal, price decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, price)
	if len(out) > model.MaxHistory {
		out = out[len(out)-model.MaxHistory:]
	}
	return out
}

// PrependNews puts ev at the front of log and keeps the newest model.MaxNews.
func PrependNews(log []model.NewsEvent, ev model.NewsEvent) []model.NewsEvent {
	out := make([]model.NewsEvent, 0, len(log)+1)
	out = append(out, ev)
	out = append(out, log...)
	if len(out) > model.MaxNews {
		out = out[:model.MaxNews]
	}
	return out
}
