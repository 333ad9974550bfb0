package dashboard

import (
	"sync"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/query"
)

// PriceHistoryRange is the window used for symbol price history.
const PriceHistoryRange = "99d"

// Subscriptions keeps the observers a screen needs in line with the session.
// When the user changes, every user-scoped observer is dropped and recreated
// for the new owner. Safe for concurrent use.
type Subscriptions struct {
	engine *Engine
	logger *zap.Logger

	mu    sync.Mutex
	owner string

	latestDate *query.Typed[string]
	symbols    *query.Typed[[]string]

	trades     *query.Typed[[]models.TradeRow]
	tradesDate string

	holdings *query.Typed[[]models.Holding]
	summary  *query.Typed[models.HoldingsSummary]

	watchlists *query.Typed[models.Watchlists]
	wlSymbols  *query.Typed[[]string]
	wlTrades   *query.Typed[[]models.TradeRow]
	wlID       int
	wlDate     string

	detail        string
	latestPrice   *query.Typed[models.TradeRow]
	priceHistory  *query.Typed[[]models.TradeRow]
	holdingTrades *query.Typed[[]models.TradeDetail]
}

// View is a point-in-time copy of every subscribed query.
type View struct {
	Owner      string
	TradesDate string

	Symbols  query.TypedState[[]string]
	Trades   query.TypedState[[]models.TradeRow]
	Holdings query.TypedState[[]models.Holding]
	Summary  query.TypedState[models.HoldingsSummary]

	WatchlistID      int
	Watchlists       query.TypedState[models.Watchlists]
	WatchlistSymbols query.TypedState[[]string]
	WatchlistTrades  query.TypedState[[]models.TradeRow]

	Detail        string
	LatestPrice   query.TypedState[models.TradeRow]
	PriceHistory  query.TypedState[[]models.TradeRow]
	HoldingTrades query.TypedState[[]models.TradeDetail]
}

// NewSubscriptions creates an empty set; call Sync to start observing.
func (e *Engine) NewSubscriptions() *Subscriptions {
	return &Subscriptions{engine: e, logger: e.logger.Named("subscriptions")}
}

// Sync brings the observers in line with the session, the latest trade date,
// the selected watchlist and the detail symbol ("" for none). It does no
// network I/O; new observers fetch in the background.
func (s *Subscriptions) Sync(watchlistID int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := ""
	if u := s.engine.Session.User(); u != nil {
		owner = u.ID
	}
	if owner != s.owner {
		s.logger.Info("Session changed, resetting user queries", zap.String("owner", owner))
		s.closeUserScoped()
		s.closeDetail()
		s.owner = owner
	}

	if s.latestDate == nil {
		s.latestDate = s.engine.WatchLatestTradeDate()
	}
	if s.symbols == nil {
		s.symbols = s.engine.WatchSymbols()
	}

	date := s.latestDate.State().Data
	if date != "" && date != s.tradesDate {
		closeTyped(s.trades)
		s.trades = s.engine.WatchTrades(date, true)
		s.tradesDate = date
	}

	if s.engine.Session.IsAuthenticated() {
		if s.holdings == nil {
			s.holdings, _ = s.engine.WatchHoldings()
		}
		if s.summary == nil {
			s.summary = s.engine.WatchHoldingsSummary()
		}
	}

	if owner != "" {
		if s.watchlists == nil {
			s.watchlists, _ = s.engine.WatchWatchlists()
		}
		if s.wlSymbols == nil || s.wlID != watchlistID {
			closeTyped(s.wlSymbols)
			s.wlSymbols, _ = s.engine.WatchWatchlistSymbols(watchlistID)
		}
		if s.wlTrades == nil || s.wlID != watchlistID || s.wlDate != date {
			closeTyped(s.wlTrades)
			s.wlTrades, _ = s.engine.WatchWatchlistTrades(watchlistID, date)
			s.wlDate = date
		}
		s.wlID = watchlistID
	}

	if detail != s.detail {
		s.closeDetail()
		s.detail = detail
		if detail != "" {
			s.latestPrice = s.engine.WatchLatestPrice(detail)
			s.priceHistory = s.engine.WatchPriceHistory(detail, PriceHistoryRange)
			s.holdingTrades = s.engine.WatchHoldingTrades(detail)
		}
	}
}

// View returns the current state of every observer. Queries not yet
// subscribed read as empty.
func (s *Subscriptions) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Owner:            s.owner,
		TradesDate:       s.tradesDate,
		Symbols:          stateOf(s.symbols),
		Trades:           stateOf(s.trades),
		Holdings:         stateOf(s.holdings),
		Summary:          stateOf(s.summary),
		WatchlistID:      s.wlID,
		Watchlists:       stateOf(s.watchlists),
		WatchlistSymbols: stateOf(s.wlSymbols),
		WatchlistTrades:  stateOf(s.wlTrades),
		Detail:           s.detail,
		LatestPrice:      stateOf(s.latestPrice),
		PriceHistory:     stateOf(s.priceHistory),
		HoldingTrades:    stateOf(s.holdingTrades),
	}
}

// Close detaches every observer.
func (s *Subscriptions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeUserScoped()
	s.closeDetail()
	closeTyped(s.latestDate)
	closeTyped(s.symbols)
	closeTyped(s.trades)
	s.latestDate, s.symbols, s.trades, s.tradesDate = nil, nil, nil, ""
	s.owner = ""
}

func (s *Subscriptions) closeUserScoped() {
	closeTyped(s.holdings)
	closeTyped(s.summary)
	closeTyped(s.watchlists)
	closeTyped(s.wlSymbols)
	closeTyped(s.wlTrades)
	s.holdings, s.summary, s.watchlists, s.wlSymbols, s.wlTrades = nil, nil, nil, nil, nil
	s.wlID, s.wlDate = 0, ""
}

func (s *Subscriptions) closeDetail() {
	closeTyped(s.latestPrice)
	closeTyped(s.priceHistory)
	closeTyped(s.holdingTrades)
	s.latestPrice, s.priceHistory, s.holdingTrades = nil, nil, nil
	s.detail = ""
}

// KnownSymbol reports whether symbol is tradable. Every symbol is accepted
// until the symbol list has loaded.
func (v View) KnownSymbol(symbol string) bool {
	if !v.Symbols.HasData {
		return true
	}
	for _, sym := range v.Symbols.Data {
		if sym == symbol {
			return true
		}
	}
	return false
}

func stateOf[T any](t *query.Typed[T]) query.TypedState[T] {
	if t == nil {
		return query.TypedState[T]{}
	}
	return t.State()
}

func closeTyped[T any](t *query.Typed[T]) {
	if t != nil {
		t.Close()
	}
}
