package main

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/dashboard"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/pricefx"
	"tradezone-dashboard/internal/query"
)

// Dashboard is the read side the HTTP handlers serve from.
type Dashboard interface {
	View() dashboard.View
	Select(watchlistID int)
	User() *models.User
	IsAuthenticated() bool
	Suspended() bool
	CanTrade() bool
	LastError() *autherr.Error
	Flashes() []pricefx.Flash
}

// feed keeps the engine's subscriptions alive for the web page and pushes
// refresh notices to the hub.
type feed struct {
	engine   *dashboard.Engine
	subs     *dashboard.Subscriptions
	hub      *WSHub
	logger   *zap.Logger
	interval time.Duration

	watchlistID atomic.Int32
}

var _ Dashboard = (*feed)(nil)

func newFeed(engine *dashboard.Engine, hub *WSHub, logger *zap.Logger) *feed {
	f := &feed{
		engine:   engine,
		subs:     engine.NewSubscriptions(),
		hub:      hub,
		logger:   logger.Named("feed"),
		interval: time.Second,
	}
	f.watchlistID.Store(1)
	return f
}

// Run syncs subscriptions every interval and forwards query and flash
// events to the hub until ctx is done.
func (f *feed) Run(ctx context.Context) {
	unsubscribe := f.engine.Queries.OnUpdate(func(key query.Key, s query.State) {
		f.hub.Broadcast(queryMessage(key, s))
	})
	defer unsubscribe()
	f.engine.Flash.OnChange(func(fl pricefx.Flash) {
		f.hub.Broadcast(flashMessage(fl))
	})
	defer f.subs.Close()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.sync()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Stopping feed...")
			return
		case <-ticker.C:
			f.sync()
		}
	}
}

func (f *feed) sync() {
	f.subs.Sync(int(f.watchlistID.Load()), "")
	v := f.subs.View()
	f.engine.Highlight(v.Trades.Data)
	f.engine.Highlight(v.WatchlistTrades.Data)
	f.engine.HighlightHoldings(v.Holdings.Data)
}

func (f *feed) View() dashboard.View {
	return f.subs.View()
}

// Select switches the watchlist the page follows.
func (f *feed) Select(watchlistID int) {
	if f.watchlistID.Swap(int32(watchlistID)) != int32(watchlistID) {
		f.subs.Sync(watchlistID, "")
	}
}

func (f *feed) User() *models.User        { return f.engine.Session.User() }
func (f *feed) IsAuthenticated() bool     { return f.engine.Session.IsAuthenticated() }
func (f *feed) Suspended() bool           { return f.engine.Session.Suspended() }
func (f *feed) CanTrade() bool            { return f.engine.Session.CanTrade() }
func (f *feed) LastError() *autherr.Error { return f.engine.Errors.Last() }
func (f *feed) Flashes() []pricefx.Flash  { return f.engine.Flash.Active() }
