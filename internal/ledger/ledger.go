// Package ledger validates and applies market orders against the player's
// balance and portfolio.
//
// ExecuteTrade is pure: the same state and order always give the same result,
// and a rejected order leaves the state exactly as it was. Trades fill in full
// at the instrument's current price.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/model"
	"github.com/marketsim/engine/internal/state"
)

var (
	// ErrUnknownInstrument is returned when the symbol is not registered.
	ErrUnknownInstrument = errors.New("ledger: unknown instrument")

	// ErrInvalidQuantity is returned when the quantity is not a positive integer.
	ErrInvalidQuantity = errors.New("ledger: quantity must be a positive integer")

	// ErrInvalidSide is returned when the side is neither buy nor sell.
	ErrInvalidSide = errors.New("ledger: side must be buy or sell")

	// ErrInsufficientFunds is returned when a buy costs more than the balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the shares held.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")
)

// Order is an immediate market order.
type Order struct {
	Symbol   string          `json:"symbol"`
	Side     model.Side      `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Fill describes an executed order.
type Fill struct {
	Symbol   string          `json:"symbol"`
	Side     model.Side      `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"` // cost for buys, proceeds for sells
}

// TradeError carries the rejected order alongside one of the sentinel errors.
type TradeError struct {
	Kind  error
	Order Order
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s (symbol=%s side=%s quantity=%s)",
		e.Kind, e.Order.Symbol, e.Order.Side, e.Order.Quantity)
}

func (e *TradeError) Unwrap() error { return e.Kind }

func reject(kind error, o Order) error {
	return &TradeError{Kind: kind, Order: o}
}

// ExecuteTrade applies o to st. On error the returned state is st itself.
//
// Checks run in order and the first failure wins: unknown instrument,
// invalid quantity, invalid side, then insufficient funds (buy) or
// insufficient shares (sell).
func ExecuteTrade(st state.State, o Order) (state.State, Fill, error) {
	inst, ok := st.Instruments.Get(o.Symbol)
	if !ok {
		return st, Fill{}, reject(ErrUnknownInstrument, o)
	}
	if !o.Quantity.IsPositive() || !o.Quantity.IsInteger() || !o.Quantity.BigInt().IsInt64() {
		return st, Fill{}, reject(ErrInvalidQuantity, o)
	}
	if !o.Side.Valid() {
		return st, Fill{}, reject(ErrInvalidSide, o)
	}

	qty := o.Quantity.IntPart()
	amount := inst.Price.Mul(o.Quantity)
	fill := Fill{Symbol: o.Symbol, Side: o.Side, Quantity: qty, Price: inst.Price, Amount: amount}

	switch o.Side {
	case model.SideBuy:
		if amount.GreaterThan(st.Balance) {
			return st, Fill{}, reject(ErrInsufficientFunds, o)
		}
		return buy(st, inst, qty, amount), fill, nil
	default:
		pos, held := st.Portfolio[o.Symbol]
		if !held || pos.Shares < qty {
			return st, Fill{}, reject(ErrInsufficientShares, o)
		}
		return sell(st, pos, qty, amount), fill, nil
	}
}

func buy(st state.State, inst model.Instrument, qty int64, cost decimal.Decimal) state.State {
	portfolio := st.ClonePortfolio()

	pos, held := portfolio[inst.Symbol]
	if !held {
		pos = model.Position{Symbol: inst.Symbol, Shares: qty, AveragePrice: inst.Price}
	} else {
		// (oldAvg * oldShares + cost) / (oldShares + qty)
		oldShares := decimal.NewFromInt(pos.Shares)
		total := oldShares.Add(decimal.NewFromInt(qty))
		pos.AveragePrice = pos.AveragePrice.Mul(oldShares).Add(cost).Div(total)
		pos.Shares += qty
	}
	portfolio[inst.Symbol] = pos

	next := st
	next.Portfolio = portfolio
	next.Balance = st.Balance.Sub(cost)
	return next
}

func sell(st state.State, pos model.Position, qty int64, proceeds decimal.Decimal) state.State {
	portfolio := st.ClonePortfolio()

	pos.Shares -= qty
	if pos.Shares == 0 {
		delete(portfolio, pos.Symbol)
	} else {
		portfolio[pos.Symbol] = pos
	}

	next := st
	next.Portfolio = portfolio
	next.Balance = st.Balance.Add(proceeds)
	return next
}
