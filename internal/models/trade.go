package models

import "github.com/shopspring/decimal"

// TradeRow is one symbol's OHLC summary for a trading date.
type TradeRow struct {
	TradeDate      string          `json:"tradDt"`
	Symbol         string          `json:"tckrSymb"`
	InstrumentName string          `json:"finInstrmNm,omitempty"`
	PrevClose      decimal.Decimal `json:"prvsClsgPric"`
	Open           decimal.Decimal `json:"opnPric"`
	High           decimal.Decimal `json:"hghPric"`
	Low            decimal.Decimal `json:"lwPric"`
	LastPrice      decimal.Decimal `json:"lastPric"`
	Close          decimal.Decimal `json:"clsPric"`
	Change         decimal.Decimal `json:"chngePric"`
	ChangePct      decimal.Decimal `json:"chngePricPct"`
}

// IsUp reports whether the row closed above the previous close.
func (t TradeRow) IsUp() bool {
	return t.Change.IsPositive()
}

// TradeDetail is one executed buy or sell behind a holding.
type TradeDetail struct {
	Symbol       string          `json:"symbol"`
	Action       string          `json:"action"`
	Qty          decimal.Decimal `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	TradeDate    string          `json:"tradeDate"`
	AgeInDays    int             `json:"ageInDays"`
	PnL          decimal.Decimal `json:"pnl"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}
