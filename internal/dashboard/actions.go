package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/query"
)

var (
	ErrInvalidQuantity        = errors.New("quantity must be greater than zero")
	ErrSymbolRequired         = errors.New("symbol is required")
	ErrQuantityExceedsHolding = errors.New("quantity exceeds holding")
	ErrOrderRejected          = errors.New("order rejected")
	ErrInvalidWatchlist       = errors.New("invalid watchlist id")
	ErrWatchlistFull          = errors.New("watchlist is full")
	ErrSymbolInWatchlist      = errors.New("symbol already in watchlist")
	ErrTooManyWatchlists      = errors.New("watchlist limit reached")
	ErrWatchlistExists        = errors.New("watchlist already exists")
	ErrWatchlistNotFound      = errors.New("watchlist not found")
	ErrLastWatchlist          = errors.New("cannot delete the last watchlist")
)

// ActionResult is the outcome of a user action, ready to be shown.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func succeeded(format string, args ...interface{}) (ActionResult, error) {
	return ActionResult{Success: true, Message: fmt.Sprintf(format, args...)}, nil
}

func failed(err error, format string, args ...interface{}) (ActionResult, error) {
	return ActionResult{Message: fmt.Sprintf(format, args...)}, err
}

// Buy places a buy order and refreshes holdings on success.
func (e *Engine) Buy(ctx context.Context, symbol string, qty int64) (ActionResult, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return failed(ErrSymbolRequired, "Please choose a symbol")
	}
	if qty <= 0 {
		return failed(ErrInvalidQuantity, "Quantity must be greater than zero")
	}

	accepted, err := e.trading.Buy(ctx, symbol, qty)
	if err != nil {
		return failed(err, "Buy %s failed: %v", symbol, err)
	}
	if !accepted {
		return failed(ErrOrderRejected, "Buy order for %s was not accepted", symbol)
	}
	e.Queries.Invalidate(query.NewKey(QueryHoldings))
	return succeeded("Bought %d %s", qty, symbol)
}

// Sell places a sell order. held is the quantity currently owned; selling
// more is rejected before any request is sent.
func (e *Engine) Sell(ctx context.Context, symbol string, qty int64, held decimal.Decimal) (ActionResult, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return failed(ErrSymbolRequired, "Please choose a symbol")
	}
	if qty <= 0 {
		return failed(ErrInvalidQuantity, "Quantity must be greater than zero")
	}
	if decimal.NewFromInt(qty).GreaterThan(held) {
		e.logger.Info("Sell rejected locally",
			zap.String("symbol", symbol),
			zap.Int64("qty", qty),
			zap.String("held", held.String()),
		)
		return failed(ErrQuantityExceedsHolding, "Cannot sell %d %s: only %s held", qty, symbol, held.String())
	}

	accepted, err := e.trading.Sell(ctx, symbol, qty)
	if err != nil {
		return failed(err, "Sell %s failed: %v", symbol, err)
	}
	if !accepted {
		return failed(ErrOrderRejected, "Sell order for %s was not accepted", symbol)
	}
	e.Queries.Invalidate(query.NewKey(QueryHoldings))
	return succeeded("Sold %d %s", qty, symbol)
}

// HeldQuantity returns the cached quantity of symbol for the signed-in user,
// fetching holdings if none are cached.
func (e *Engine) HeldQuantity(ctx context.Context, symbol string) (decimal.Decimal, error) {
	u := e.Session.User()
	if u == nil || !e.Session.IsAuthenticated() {
		return decimal.Zero, ErrNotAuthenticated
	}

	var holdings []models.Holding
	if state, found := e.Queries.Peek(KeyHoldings(u.ID)); found && state.HasData {
		holdings = query.Cast[[]models.Holding](state).Data
	} else {
		userID, err := e.Session.TradingUserID(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		if holdings, err = e.trading.Holdings(ctx, userID); err != nil {
			return decimal.Zero, err
		}
	}

	h, found := models.FindHolding(holdings, models.NormalizeSymbol(symbol))
	if !found {
		return decimal.Zero, nil
	}
	return h.AvgQty, nil
}

// AddSymbol appends symbol to a watchlist. The size limit is checked against
// the cached symbols so a full list never reaches the server.
func (e *Engine) AddSymbol(ctx context.Context, watchlistID int, symbol string) (ActionResult, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return failed(ErrSymbolRequired, "Please choose a symbol")
	}
	if !models.ValidWatchlistID(watchlistID) {
		return failed(ErrInvalidWatchlist, "Watchlist %d does not exist", watchlistID)
	}
	owner, err := e.watchlistOwner()
	if err != nil {
		return failed(err, "Please sign in to manage watchlists")
	}

	symbols, err := e.cachedWatchlistSymbols(ctx, owner, watchlistID)
	if err != nil {
		return failed(err, "Could not load watchlist %d: %v", watchlistID, err)
	}
	if len(symbols) >= models.MaxWatchlistSymbols {
		return failed(ErrWatchlistFull, "Watchlist %d already has %d symbols", watchlistID, models.MaxWatchlistSymbols)
	}
	for _, s := range symbols {
		if s == symbol {
			return failed(ErrSymbolInWatchlist, "%s is already in watchlist %d", symbol, watchlistID)
		}
	}

	if err := e.trading.AddWatchlistSymbol(ctx, watchlistID, symbol); err != nil {
		return failed(err, "Failed to add %s: %v", symbol, err)
	}
	e.invalidateWatchlist(owner, watchlistID)
	return succeeded("Added %s to watchlist %d", symbol, watchlistID)
}

// RemoveSymbol removes symbol from a watchlist.
func (e *Engine) RemoveSymbol(ctx context.Context, watchlistID int, symbol string) (ActionResult, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return failed(ErrSymbolRequired, "Please choose a symbol")
	}
	if !models.ValidWatchlistID(watchlistID) {
		return failed(ErrInvalidWatchlist, "Watchlist %d does not exist", watchlistID)
	}
	owner, err := e.watchlistOwner()
	if err != nil {
		return failed(err, "Please sign in to manage watchlists")
	}

	if err := e.trading.RemoveWatchlistSymbol(ctx, watchlistID, symbol); err != nil {
		return failed(err, "Failed to remove %s: %v", symbol, err)
	}
	e.invalidateWatchlist(owner, watchlistID)
	return succeeded("Removed %s from watchlist %d", symbol, watchlistID)
}

// CreateWatchlist creates an empty watchlist in slot watchlistID.
func (e *Engine) CreateWatchlist(ctx context.Context, watchlistID int) (ActionResult, error) {
	if !models.ValidWatchlistID(watchlistID) {
		return failed(ErrInvalidWatchlist, "Watchlist id must be between 1 and %d", models.MaxWatchlists)
	}
	owner, err := e.watchlistOwner()
	if err != nil {
		return failed(err, "Please sign in to manage watchlists")
	}

	lists, err := e.cachedWatchlists(ctx, owner)
	if err != nil {
		return failed(err, "Could not load watchlists: %v", err)
	}
	if lists.Has(watchlistID) {
		return failed(ErrWatchlistExists, "Watchlist %d already exists", watchlistID)
	}
	if len(lists) >= models.MaxWatchlists {
		return failed(ErrTooManyWatchlists, "You can have at most %d watchlists", models.MaxWatchlists)
	}

	if err := e.trading.CreateWatchlist(ctx, watchlistID); err != nil {
		return failed(err, "Failed to create watchlist %d: %v", watchlistID, err)
	}
	e.Queries.Invalidate(KeyWatchlists(owner))
	return succeeded("Created watchlist %d", watchlistID)
}

// DeleteWatchlist removes a watchlist. The last remaining one cannot be
// deleted.
func (e *Engine) DeleteWatchlist(ctx context.Context, watchlistID int) (ActionResult, error) {
	if !models.ValidWatchlistID(watchlistID) {
		return failed(ErrInvalidWatchlist, "Watchlist id must be between 1 and %d", models.MaxWatchlists)
	}
	owner, err := e.watchlistOwner()
	if err != nil {
		return failed(err, "Please sign in to manage watchlists")
	}

	lists, err := e.cachedWatchlists(ctx, owner)
	if err != nil {
		return failed(err, "Could not load watchlists: %v", err)
	}
	if !lists.Has(watchlistID) {
		return failed(ErrWatchlistNotFound, "Watchlist %d does not exist", watchlistID)
	}
	if len(lists) <= 1 {
		return failed(ErrLastWatchlist, "Cannot delete your only watchlist")
	}

	if err := e.trading.DeleteWatchlist(ctx, watchlistID); err != nil {
		return failed(err, "Failed to delete watchlist %d: %v", watchlistID, err)
	}
	e.invalidateWatchlist(owner, watchlistID)
	return succeeded("Deleted watchlist %d", watchlistID)
}

func (e *Engine) invalidateWatchlist(owner string, watchlistID int) {
	id := fmt.Sprint(watchlistID)
	e.Queries.Invalidate(query.NewKey(QueryWatchlistSymbols, owner, id))
	e.Queries.Invalidate(KeyWatchlists(owner))
	e.Queries.Invalidate(query.NewKey(QueryWatchlistTrades, owner, id))
}

func (e *Engine) cachedWatchlistSymbols(ctx context.Context, owner string, watchlistID int) ([]string, error) {
	if state, found := e.Queries.Peek(KeyWatchlistSymbols(owner, watchlistID)); found && state.HasData {
		return query.Cast[[]string](state).Data, nil
	}
	return e.trading.WatchlistSymbols(ctx, watchlistID)
}

func (e *Engine) cachedWatchlists(ctx context.Context, owner string) (models.Watchlists, error) {
	if state, found := e.Queries.Peek(KeyWatchlists(owner)); found && state.HasData {
		return query.Cast[models.Watchlists](state).Data, nil
	}
	return e.trading.Watchlists(ctx)
}
