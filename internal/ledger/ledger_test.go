package ledger

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsim/engine/internal/model"
	"github.com/marketsim/engine/internal/registry"
	"github.com/marketsim/engine/internal/state"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func q(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// newState returns a state holding TECH at techPrice and FOOD at 25.40.
func newState(t *testing.T, balance, techPrice float64) state.State {
	t.Helper()
	r, err := registry.New([]model.Instrument{
		{Symbol: "TECH", Name: "TechNova Solutions", Sector: "Technology", Price: d(techPrice)},
		{Symbol: "FOOD", Name: "Organic Harvest", Sector: "Consumer Goods", Price: d(25.40)},
	})
	require.NoError(t, err)
	return state.New(d(balance), r)
}

// withPrice reprices symbol, standing in for a day-advance.
func withPrice(t *testing.T, st state.State, symbol string, price float64) state.State {
	t.Helper()
	insts := st.Instruments.All()
	for i := range insts {
		if insts[i].Symbol == symbol {
			insts[i].Price = d(price)
		}
	}
	r, err := st.Instruments.Replace(insts)
	require.NoError(t, err)
	st.Instruments = r
	return st
}

func mustTrade(t *testing.T, st state.State, o Order) state.State {
	t.Helper()
	next, _, err := ExecuteTrade(st, o)
	require.NoError(t, err)
	return next
}

func TestExecuteTrade_WeightedAverage(t *testing.T) {
	st := newState(t, 10000, 100)

	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(10)})
	pos, ok := st.Position("TECH")
	require.True(t, ok)
	assert.Equal(t, int64(10), pos.Shares)
	assert.Equal(t, "100.00", pos.AveragePrice.StringFixed(2))
	assert.Equal(t, "9000.00", st.Balance.StringFixed(2))

	st = withPrice(t, st, "TECH", 150)
	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(10)})
	pos, _ = st.Position("TECH")
	assert.Equal(t, int64(20), pos.Shares)
	assert.Equal(t, "125.00", pos.AveragePrice.StringFixed(2))
	assert.Equal(t, "7500.00", st.Balance.StringFixed(2))
}

func TestExecuteTrade_InsufficientFunds(t *testing.T) {
	st := newState(t, 50, 100)

	next, fill, err := ExecuteTrade(st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(1)})

	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, st, next)
	assert.Equal(t, Fill{}, fill)
	assert.Empty(t, next.Portfolio)
}

func TestExecuteTrade_ExactBalanceAllowed(t *testing.T) {
	st := newState(t, 100, 100)

	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(1)})
	assert.True(t, st.Balance.IsZero())
}

func TestExecuteTrade_RoundTrip(t *testing.T) {
	start := newState(t, 10000, 150.25)

	st := mustTrade(t, start, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(7)})
	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideSell, Quantity: q(7)})

	assert.True(t, st.Balance.Equal(start.Balance), "balance %s, want %s", st.Balance, start.Balance)
	_, held := st.Position("TECH")
	assert.False(t, held, "position removed at zero shares")
}

func TestExecuteTrade_PartialSellKeepsAverage(t *testing.T) {
	st := newState(t, 10000, 100)
	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(10)})
	st = withPrice(t, st, "TECH", 120)

	st, fill, err := ExecuteTrade(st, Order{Symbol: "TECH", Side: model.SideSell, Quantity: q(4)})
	require.NoError(t, err)

	pos, _ := st.Position("TECH")
	assert.Equal(t, int64(6), pos.Shares)
	assert.Equal(t, "100.00", pos.AveragePrice.StringFixed(2))
	assert.Equal(t, "9480.00", st.Balance.StringFixed(2))
	assert.Equal(t, "480.00", fill.Amount.StringFixed(2))
	assert.Equal(t, int64(4), fill.Quantity)
}

func TestExecuteTrade_Rejections(t *testing.T) {
	base := newState(t, 1000, 100)
	held := mustTrade(t, base, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(2)})

	tests := []struct {
		name  string
		st    state.State
		order Order
		want  error
	}{
		{"unknown symbol", base, Order{Symbol: "NOPE", Side: model.SideBuy, Quantity: q(1)}, ErrUnknownInstrument},
		{"unknown symbol wins over bad quantity", base, Order{Symbol: "NOPE", Side: model.SideBuy, Quantity: q(0)}, ErrUnknownInstrument},
		{"zero quantity", base, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(0)}, ErrInvalidQuantity},
		{"negative quantity", base, Order{Symbol: "TECH", Side: model.SideSell, Quantity: q(-3)}, ErrInvalidQuantity},
		{"fractional quantity", base, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: d(1.5)}, ErrInvalidQuantity},
		{"bad quantity wins over bad side", base, Order{Symbol: "TECH", Side: "hold", Quantity: q(0)}, ErrInvalidQuantity},
		{"invalid side", base, Order{Symbol: "TECH", Side: "short", Quantity: q(1)}, ErrInvalidSide},
		{"buy beyond balance", base, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(11)}, ErrInsufficientFunds},
		{"sell without position", base, Order{Symbol: "TECH", Side: model.SideSell, Quantity: q(1)}, ErrInsufficientShares},
		{"sell more than held", held, Order{Symbol: "TECH", Side: model.SideSell, Quantity: q(3)}, ErrInsufficientShares},
		{"sell other symbol", held, Order{Symbol: "FOOD", Side: model.SideSell, Quantity: q(1)}, ErrInsufficientShares},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := ExecuteTrade(tt.st, tt.order)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.st, next, "rejected order must not change state")

			var te *TradeError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.order, te.Order)
		})
	}
}

func TestExecuteTrade_DoesNotMutateInput(t *testing.T) {
	st := newState(t, 10000, 100)
	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(5)})
	before := st.ClonePortfolio()

	_ = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(5)})
	_ = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideSell, Quantity: q(5)})

	assert.Equal(t, before, st.Portfolio)
	assert.Equal(t, "9500.00", st.Balance.StringFixed(2))
}

func TestExecuteTrade_Deterministic(t *testing.T) {
	st := newState(t, 10000, 42.10)
	o := Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(13)}

	a, fa, errA := ExecuteTrade(st, o)
	b, fb, errB := ExecuteTrade(st, o)

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
	assert.Equal(t, fa, fb)
}

// Random order streams must never drive the balance negative or leave an
// empty position behind.
func TestExecuteTrade_InvariantsHoldUnderRandomOrders(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	st := newState(t, 5000, 100)
	symbols := []string{"TECH", "FOOD", "NOPE"}
	sides := []model.Side{model.SideBuy, model.SideSell}

	for i := 0; i < 2000; i++ {
		if i%50 == 0 {
			st = withPrice(t, st, "TECH", 1+rng.Float64()*300)
		}
		o := Order{
			Symbol:   symbols[rng.Intn(len(symbols))],
			Side:     sides[rng.Intn(len(sides))],
			Quantity: q(int64(rng.Intn(40) - 5)),
		}
		st, _, _ = ExecuteTrade(st, o)

		require.False(t, st.Balance.IsNegative(), "step %d: balance %s", i, st.Balance)
		for sym, pos := range st.Portfolio {
			require.Greater(t, pos.Shares, int64(0), "step %d: %s", i, sym)
		}
	}
}

func TestValuation(t *testing.T) {
	st := newState(t, 10000, 100)
	st = mustTrade(t, st, Order{Symbol: "TECH", Side: model.SideBuy, Quantity: q(10)})
	st = mustTrade(t, st, Order{Symbol: "FOOD", Side: model.SideBuy, Quantity: q(10)})
	st = withPrice(t, st, "TECH", 110)

	sum := Valuation(st)

	require.Len(t, sum.Holdings, 2)
	assert.Equal(t, "FOOD", sum.Holdings[0].Symbol)
	assert.Equal(t, "TECH", sum.Holdings[1].Symbol)
	assert.Equal(t, "100.00", sum.Holdings[1].UnrealizedPnL.StringFixed(2))
	assert.Equal(t, "1354.00", sum.PortfolioValue.StringFixed(2))
	assert.Equal(t, "8746.00", sum.Balance.StringFixed(2))
	assert.Equal(t, "10100.00", sum.TotalAssets.StringFixed(2))
	assert.Equal(t, "100.00", sum.UnrealizedPnL.StringFixed(2))
}

func TestValuation_EmptyPortfolio(t *testing.T) {
	sum := Valuation(newState(t, 10000, 100))
	assert.Empty(t, sum.Holdings)
	assert.True(t, sum.TotalAssets.Equal(q(10000)))
}
