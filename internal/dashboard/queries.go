package dashboard

import (
	"context"
	"strconv"

	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/query"
)

// Query key heads. Mutations invalidate by these prefixes.
const (
	QueryHoldings         = "holdings"
	QueryTrades           = "trades"
	QueryLatestTradeDate  = "latest-trade-date"
	QuerySymbols          = "symbols"
	QueryPriceHistory     = "price-history"
	QueryLatestPrice      = "latest-price"
	QueryHoldingTrades    = "holding-trades"
	QueryWatchlists       = "watchlists"
	QueryWatchlistSymbols = "watchlist-symbols"
	QueryWatchlistTrades  = "watchlist-trades"
)

func KeyHoldings(owner string) query.Key {
	return query.NewKey(QueryHoldings, "user", owner)
}

func KeyHoldingsSummary() query.Key {
	return query.NewKey(QueryHoldings, "my")
}

func KeyHoldingTrades(symbol string) query.Key {
	return query.NewKey(QueryHoldingTrades, symbol)
}

func KeyTrades(date string, live bool) query.Key {
	return query.NewKey(QueryTrades, date, strconv.FormatBool(live))
}

func KeyLatestTradeDate() query.Key {
	return query.NewKey(QueryLatestTradeDate)
}

func KeySymbols() query.Key {
	return query.NewKey(QuerySymbols)
}

func KeyPriceHistory(symbol, timeRange string) query.Key {
	return query.NewKey(QueryPriceHistory, symbol, timeRange)
}

func KeyLatestPrice(symbol string) query.Key {
	return query.NewKey(QueryLatestPrice, symbol)
}

func KeyWatchlists(owner string) query.Key {
	return query.NewKey(QueryWatchlists, owner)
}

func KeyWatchlistSymbols(owner string, watchlistID int) query.Key {
	return query.NewKey(QueryWatchlistSymbols, owner, strconv.Itoa(watchlistID))
}

func KeyWatchlistTrades(owner string, watchlistID int, date string) query.Key {
	return query.NewKey(QueryWatchlistTrades, owner, strconv.Itoa(watchlistID), date)
}

// WatchHoldings polls the positions of the signed-in user. Guests get
// ErrNotAuthenticated. The trading user id is resolved inside each fetch, so
// a failing lookup surfaces as the query error and is retried on the
// holdings interval.
func (e *Engine) WatchHoldings() (*query.Typed[[]models.Holding], error) {
	u := e.Session.User()
	if u == nil || !e.Session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return query.Watch(e.Queries, KeyHoldings(u.ID), func(ctx context.Context) ([]models.Holding, error) {
		userID, err := e.Session.TradingUserID(ctx)
		if err != nil {
			return nil, err
		}
		return e.trading.Holdings(ctx, userID)
	}, query.Options{Interval: e.cfg.Refresh.Holdings}), nil
}

// WatchHoldingsSummary polls the portfolio totals.
func (e *Engine) WatchHoldingsSummary() *query.Typed[models.HoldingsSummary] {
	return query.Watch(e.Queries, KeyHoldingsSummary(), e.trading.MyHoldings,
		query.Options{Interval: e.cfg.Refresh.Holdings, Disabled: !e.Session.IsAuthenticated()})
}

// WatchHoldingTrades loads the executions behind one holding.
func (e *Engine) WatchHoldingTrades(symbol string) *query.Typed[[]models.TradeDetail] {
	return query.Watch(e.Queries, KeyHoldingTrades(symbol), func(ctx context.Context) ([]models.TradeDetail, error) {
		return e.trading.HoldingTrades(ctx, symbol)
	}, query.Options{Disabled: !e.Session.IsAuthenticated()})
}

// WatchLatestTradeDate polls the most recent trading date.
func (e *Engine) WatchLatestTradeDate() *query.Typed[string] {
	return query.Watch(e.Queries, KeyLatestTradeDate(), e.trading.LatestTradeDate,
		query.Options{Interval: e.cfg.Refresh.LatestTradeDate})
}

// WatchTrades polls the trade grid of date. An empty date disables the query.
func (e *Engine) WatchTrades(date string, live bool) *query.Typed[[]models.TradeRow] {
	return query.Watch(e.Queries, KeyTrades(date, live), func(ctx context.Context) ([]models.TradeRow, error) {
		return e.trading.TradesByDate(ctx, date, live)
	}, query.Options{Interval: e.cfg.Refresh.Trades, Disabled: date == ""})
}

// WatchSymbols loads the tradable symbols once.
func (e *Engine) WatchSymbols() *query.Typed[[]string] {
	return query.Watch(e.Queries, KeySymbols(), e.trading.Symbols, query.Options{})
}

// WatchPriceHistory loads the chart rows of symbol.
func (e *Engine) WatchPriceHistory(symbol, timeRange string) *query.Typed[[]models.TradeRow] {
	return query.Watch(e.Queries, KeyPriceHistory(symbol, timeRange), func(ctx context.Context) ([]models.TradeRow, error) {
		return e.trading.PriceHistory(ctx, symbol, timeRange)
	}, query.Options{Disabled: symbol == ""})
}

// WatchLatestPrice polls the newest row of symbol, as shown in the order form.
func (e *Engine) WatchLatestPrice(symbol string) *query.Typed[models.TradeRow] {
	return query.Watch(e.Queries, KeyLatestPrice(symbol), func(ctx context.Context) (models.TradeRow, error) {
		return e.trading.LatestPrice(ctx, symbol)
	}, query.Options{Interval: e.cfg.Refresh.LatestPrice, Disabled: symbol == ""})
}

// WatchWatchlists polls the watchlists of the current user, guest included.
func (e *Engine) WatchWatchlists() (*query.Typed[models.Watchlists], error) {
	owner, err := e.watchlistOwner()
	if err != nil {
		return nil, err
	}
	return query.Watch(e.Queries, KeyWatchlists(owner), e.trading.Watchlists,
		query.Options{Interval: e.cfg.Refresh.Watchlist}), nil
}

// WatchWatchlistSymbols polls the symbols of one watchlist.
func (e *Engine) WatchWatchlistSymbols(watchlistID int) (*query.Typed[[]string], error) {
	owner, err := e.watchlistOwner()
	if err != nil {
		return nil, err
	}
	return query.Watch(e.Queries, KeyWatchlistSymbols(owner, watchlistID), func(ctx context.Context) ([]string, error) {
		return e.trading.WatchlistSymbols(ctx, watchlistID)
	}, query.Options{Interval: e.cfg.Refresh.WatchlistSymbols}), nil
}

// WatchWatchlistTrades polls the trade rows of a watchlist's symbols on date.
func (e *Engine) WatchWatchlistTrades(watchlistID int, date string) (*query.Typed[[]models.TradeRow], error) {
	owner, err := e.watchlistOwner()
	if err != nil {
		return nil, err
	}
	return query.Watch(e.Queries, KeyWatchlistTrades(owner, watchlistID, date), func(ctx context.Context) ([]models.TradeRow, error) {
		return e.trading.WatchlistTrades(ctx, date, watchlistID)
	}, query.Options{Interval: e.cfg.Refresh.Watchlist, Disabled: date == ""}), nil
}

func (e *Engine) watchlistOwner() (string, error) {
	u := e.Session.User()
	if u == nil {
		return "", ErrNoSession
	}
	return u.ID, nil
}
