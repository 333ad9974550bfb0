package models

import "github.com/shopspring/decimal"

// Holding is a position computed by the trading service. The dashboard only
// displays it; every poll replaces the previous set wholesale.
type Holding struct {
	Symbol       string          `json:"tckrSymb"`
	AvgQty       decimal.Decimal `json:"avgQty"`
	AvgCost      decimal.Decimal `json:"avgCost"`
	TotalCost    decimal.Decimal `json:"totCost"`
	LastPrice    decimal.Decimal `json:"lastPric"`
	PrevClose    decimal.Decimal `json:"prvsClsgPric"`
	PriceChange  decimal.Decimal `json:"chngePric"`
	CurrentValue decimal.Decimal `json:"currValue"`
	PnL          decimal.Decimal `json:"pnl"`
	NetChange    decimal.Decimal `json:"netChng"`
	NetChangePct decimal.Decimal `json:"netChngPct"`
	DayChange    decimal.Decimal `json:"dayChng"`
	DayChangePct decimal.Decimal `json:"dayChngPct"`
}

// HoldingsSummary is the portfolio total returned by /tradingzone/holdings/my.
type HoldingsSummary struct {
	TotalCurrentValue decimal.Decimal `json:"totCurrValue"`
	TotalInvestment   decimal.Decimal `json:"totInvestment"`
}

// PnL returns the unrealised profit or loss of the whole portfolio.
func (s HoldingsSummary) PnL() decimal.Decimal {
	return s.TotalCurrentValue.Sub(s.TotalInvestment)
}

// FindHolding returns the holding for symbol, if present.
func FindHolding(holdings []Holding, symbol string) (Holding, bool) {
	for _, h := range holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}
