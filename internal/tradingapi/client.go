// Package tradingapi is the client for the /tradingzone trading service.
package tradingapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/restclient"
)

// Interface defines the operations the dashboard performs against the trading API.
type Interface interface {
	Holdings(ctx context.Context, userID int64) ([]models.Holding, error)
	MyHoldings(ctx context.Context) (models.HoldingsSummary, error)
	HoldingTrades(ctx context.Context, symbol string) ([]models.TradeDetail, error)
	Buy(ctx context.Context, symbol string, qty int64) (bool, error)
	Sell(ctx context.Context, symbol string, qty int64) (bool, error)

	LatestTradeDate(ctx context.Context) (string, error)
	TradesByDate(ctx context.Context, date string, live bool) ([]models.TradeRow, error)
	Symbols(ctx context.Context) ([]string, error)
	PriceHistory(ctx context.Context, symbol, timeRange string) ([]models.TradeRow, error)
	LatestPrice(ctx context.Context, symbol string) (models.TradeRow, error)

	WatchlistSymbols(ctx context.Context, watchlistID int) ([]string, error)
	Watchlists(ctx context.Context) (models.Watchlists, error)
	WatchlistTrades(ctx context.Context, date string, watchlistID int) ([]models.TradeRow, error)
	AddWatchlistSymbol(ctx context.Context, watchlistID int, symbol string) error
	RemoveWatchlistSymbol(ctx context.Context, watchlistID int, symbol string) error
	CreateWatchlist(ctx context.Context, watchlistID int) error
	DeleteWatchlist(ctx context.Context, watchlistID int) error
}

// Client implements Interface over restclient.
type Client struct {
	rest   *restclient.Client
	logger *zap.Logger
}

// ensure Client implements the interface
var _ Interface = (*Client)(nil)

// NewClient creates a trading API client.
func NewClient(rest *restclient.Client, logger *zap.Logger) *Client {
	return &Client{rest: rest, logger: logger}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	req := c.rest.R(ctx).SetHeader("Accept", "application/json")
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if result != nil {
		req.SetResult(result)
	}
	_, err := c.rest.Do(ctx, http.MethodGet, path, req)
	return err
}

// Holdings fetches the positions of a trading user.
func (c *Client) Holdings(ctx context.Context, userID int64) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := c.get(ctx, "/tradingzone/holdings/"+strconv.FormatInt(userID, 10), nil, &holdings); err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	return holdings, nil
}

// MyHoldings fetches the portfolio totals of the session user.
func (c *Client) MyHoldings(ctx context.Context) (models.HoldingsSummary, error) {
	var summary models.HoldingsSummary
	if err := c.get(ctx, "/tradingzone/holdings/my", nil, &summary); err != nil {
		return summary, fmt.Errorf("failed to get holdings summary: %w", err)
	}
	return summary, nil
}

// HoldingTrades fetches the executions behind one holding of the session user.
func (c *Client) HoldingTrades(ctx context.Context, symbol string) ([]models.TradeDetail, error) {
	var trades []models.TradeDetail
	if err := c.get(ctx, "/tradingzone/holdings/my/trades/"+url.PathEscape(symbol), nil, &trades); err != nil {
		return nil, fmt.Errorf("failed to get trades for %s: %w", symbol, err)
	}
	return trades, nil
}

// Buy places a buy order. The service answers with a bare JSON boolean.
func (c *Client) Buy(ctx context.Context, symbol string, qty int64) (bool, error) {
	return c.order(ctx, "buy", symbol, qty)
}

// Sell places a sell order.
func (c *Client) Sell(ctx context.Context, symbol string, qty int64) (bool, error) {
	return c.order(ctx, "sell", symbol, qty)
}

func (c *Client) order(ctx context.Context, side, symbol string, qty int64) (bool, error) {
	var ok bool
	req := c.rest.R(ctx).
		SetQueryParam("qty", strconv.FormatInt(qty, 10)).
		SetResult(&ok)

	path := fmt.Sprintf("/tradingzone/holdings/%s/%s", side, url.PathEscape(symbol))
	if _, err := c.rest.Do(ctx, http.MethodPut, path, req); err != nil {
		c.logger.Error("Failed to place order",
			zap.String("side", side),
			zap.String("symbol", symbol),
			zap.Int64("qty", qty),
			zap.Error(err),
		)
		return false, fmt.Errorf("failed to %s %s: %w", side, symbol, err)
	}

	c.logger.Info("Order placed",
		zap.String("side", side),
		zap.String("symbol", symbol),
		zap.Int64("qty", qty),
		zap.Bool("accepted", ok),
	)
	return ok, nil
}

// LatestTradeDate returns the most recent trading date known to the service.
// The body is either plain text or a JSON string.
func (c *Client) LatestTradeDate(ctx context.Context) (string, error) {
	req := c.rest.R(ctx)
	resp, err := c.rest.Do(ctx, http.MethodGet, "/tradingzone/trades/latestdate/", req)
	if err != nil {
		return "", fmt.Errorf("failed to get latest trade date: %w", err)
	}
	date := strings.Trim(strings.TrimSpace(resp.String()), `"`)
	if date == "" {
		return "", fmt.Errorf("latest trade date is empty")
	}
	return date, nil
}

// TradesByDate fetches the trade grid for date. live selects the intraday feed.
func (c *Client) TradesByDate(ctx context.Context, date string, live bool) ([]models.TradeRow, error) {
	var rows []models.TradeRow
	query := url.Values{"date": {date}, "live": {strconv.FormatBool(live)}}
	if err := c.get(ctx, "/tradingzone/tradesByDate", query, &rows); err != nil {
		return nil, fmt.Errorf("failed to get trades for %s: %w", date, err)
	}
	return rows, nil
}

// Symbols lists every tradable symbol.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := c.get(ctx, "/tradingzone/trades/symbols/", nil, &symbols); err != nil {
		return nil, fmt.Errorf("failed to get symbols: %w", err)
	}
	return symbols, nil
}

// PriceHistory fetches the daily rows of symbol over timeRange (e.g. "1M").
func (c *Client) PriceHistory(ctx context.Context, symbol, timeRange string) ([]models.TradeRow, error) {
	var rows []models.TradeRow
	path := fmt.Sprintf("/tradingzone/tradeshistory/%s/%s", url.PathEscape(symbol), url.PathEscape(timeRange))
	if err := c.get(ctx, path, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to get price history for %s: %w", symbol, err)
	}
	return rows, nil
}

// LatestPrice fetches the newest row of symbol.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (models.TradeRow, error) {
	var row models.TradeRow
	if err := c.get(ctx, "/tradingzone/watchlist/latestprice/"+url.PathEscape(symbol), nil, &row); err != nil {
		return row, fmt.Errorf("failed to get latest price for %s: %w", symbol, err)
	}
	return row, nil
}

// WatchlistSymbols lists the symbols in one watchlist slot.
func (c *Client) WatchlistSymbols(ctx context.Context, watchlistID int) ([]string, error) {
	var symbols []string
	query := url.Values{"watchlistId": {strconv.Itoa(watchlistID)}}
	if err := c.get(ctx, "/tradingzone/watchlist/my/symbols", query, &symbols); err != nil {
		return nil, fmt.Errorf("failed to get watchlist %d symbols: %w", watchlistID, err)
	}
	return symbols, nil
}

// Watchlists returns every watchlist of the session user.
func (c *Client) Watchlists(ctx context.Context) (models.Watchlists, error) {
	lists := models.Watchlists{}
	if err := c.get(ctx, "/tradingzone/watchlist/my/watchlists", nil, &lists); err != nil {
		return nil, fmt.Errorf("failed to get watchlists: %w", err)
	}
	return lists, nil
}

// WatchlistTrades fetches the trade rows of a watchlist's symbols on date.
func (c *Client) WatchlistTrades(ctx context.Context, date string, watchlistID int) ([]models.TradeRow, error) {
	var rows []models.TradeRow
	query := url.Values{"date": {date}, "watchlistId": {strconv.Itoa(watchlistID)}}
	if err := c.get(ctx, "/tradingzone/watchlist/my/trades", query, &rows); err != nil {
		return nil, fmt.Errorf("failed to get watchlist %d trades: %w", watchlistID, err)
	}
	return rows, nil
}

// AddWatchlistSymbol appends symbol to a watchlist.
func (c *Client) AddWatchlistSymbol(ctx context.Context, watchlistID int, symbol string) error {
	return c.changeWatchlist(ctx, "add", watchlistID, symbol)
}

// RemoveWatchlistSymbol removes symbol from a watchlist.
func (c *Client) RemoveWatchlistSymbol(ctx context.Context, watchlistID int, symbol string) error {
	return c.changeWatchlist(ctx, "remove", watchlistID, symbol)
}

func (c *Client) changeWatchlist(ctx context.Context, op string, watchlistID int, symbol string) error {
	req := c.rest.R(ctx).SetQueryParam("watchlistId", strconv.Itoa(watchlistID))
	path := fmt.Sprintf("/tradingzone/watchlist/my/%s/%s", op, url.PathEscape(symbol))
	if _, err := c.rest.Do(ctx, http.MethodPut, path, req); err != nil {
		return fmt.Errorf("failed to %s %s in watchlist %d: %w", op, symbol, watchlistID, err)
	}
	return nil
}

// CreateWatchlist creates an empty watchlist in slot watchlistID.
func (c *Client) CreateWatchlist(ctx context.Context, watchlistID int) error {
	path := "/tradingzone/watchlist/my/watchlist/" + strconv.Itoa(watchlistID)
	if _, err := c.rest.Do(ctx, http.MethodPost, path, c.rest.R(ctx)); err != nil {
		return fmt.Errorf("failed to create watchlist %d: %w", watchlistID, err)
	}
	return nil
}

// DeleteWatchlist removes the watchlist in slot watchlistID.
func (c *Client) DeleteWatchlist(ctx context.Context, watchlistID int) error {
	path := "/tradingzone/watchlist/my/watchlist/" + strconv.Itoa(watchlistID)
	if _, err := c.rest.Do(ctx, http.MethodDelete, path, c.rest.R(ctx)); err != nil {
		return fmt.Errorf("failed to delete watchlist %d: %w", watchlistID, err)
	}
	return nil
}
