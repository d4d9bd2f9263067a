package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/state"
)

// Holding is a position marked to the instrument's current price.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Shares        int64           `json:"shares"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`   // shares * current price
	CostBasis     decimal.Decimal `json:"cost_basis"`     // shares * average price
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"` // market value - cost basis
}

// Summary aggregates the player's holdings.
type Summary struct {
	Day            int             `json:"day"`
	Balance        decimal.Decimal `json:"balance"`
	Holdings       []Holding       `json:"holdings"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	TotalAssets    decimal.Decimal `json:"total_assets"` // balance + portfolio value
}

// Valuation marks every position to market. Positions whose instrument is
// missing contribute nothing to the portfolio value.
func Valuation(st state.State) Summary {
	sum := Summary{
		Day:            st.Day,
		Balance:        st.Balance,
		Holdings:       []Holding{},
		PortfolioValue: decimal.Zero,
		UnrealizedPnL:  decimal.Zero,
	}

	for _, inst := range st.Instruments.All() {
		pos, ok := st.Portfolio[inst.Symbol]
		if !ok {
			continue
		}
		shares := decimal.NewFromInt(pos.Shares)
		value := inst.Price.Mul(shares)
		basis := pos.AveragePrice.Mul(shares)
		h := Holding{
			Symbol:        inst.Symbol,
			Name:          inst.Name,
			Shares:        pos.Shares,
			AveragePrice:  pos.AveragePrice,
			CurrentPrice:  inst.Price,
			MarketValue:   value,
			CostBasis:     basis,
			UnrealizedPnL: value.Sub(basis).Round(2),
		}
		sum.Holdings = append(sum.Holdings, h)
		sum.PortfolioValue = sum.PortfolioValue.Add(value)
		sum.UnrealizedPnL = sum.UnrealizedPnL.Add(h.UnrealizedPnL)
	}

	sum.TotalAssets = st.Balance.Add(sum.PortfolioValue)
	return sum
}
