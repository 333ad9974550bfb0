// Package dashboard ties the session, the query cache and the trading
// mutations together behind one Engine used by every front end.
package dashboard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tradezone-dashboard/internal/authapi"
	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/config"
	"tradezone-dashboard/internal/database"
	"tradezone-dashboard/internal/identity"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/pricefx"
	"tradezone-dashboard/internal/query"
	"tradezone-dashboard/internal/restclient"
	"tradezone-dashboard/internal/tradingapi"
)

// Engine is the dashboard core shared by the terminal and web front ends.
type Engine struct {
	logger  *zap.Logger
	cfg     config.Config
	trading tradingapi.Interface
	auth    authapi.Interface
	prefs   Preferences

	Session *Session
	Errors  *autherr.Handler
	Queries *query.Client
	Flash   *pricefx.Tracker

	resolver *identity.Resolver
}

// NewEngine wires an Engine. Queries run under ctx.
func NewEngine(ctx context.Context, logger *zap.Logger, cfg config.Config, trading tradingapi.Interface, auth authapi.Interface, cookies *restclient.CookieSession, prefs Preferences) *Engine {
	errs := autherr.NewHandler(cfg.Errors.DedupWindow, logger.Named("auth-errors"))
	resolver := identity.NewResolver(auth, errs, cfg.Identity.CacheTTL, logger.Named("identity"))

	return &Engine{
		logger:   logger,
		cfg:      cfg,
		trading:  trading,
		auth:     auth,
		prefs:    prefs,
		Session:  NewSession(auth, errs, resolver, cookies, prefs, logger),
		Errors:   errs,
		Queries:  query.NewClient(ctx, logger.Named("query")),
		Flash:    pricefx.NewTracker(cfg.Flash.Threshold, cfg.Flash.Duration, logger.Named("flash")),
		resolver: resolver,
	}
}

// Run checks the session and then monitors auth service health until ctx is
// done. Health is only watched once a real user has signed in.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Starting dashboard engine")
	if err := e.Session.Check(ctx); err != nil {
		e.logger.Warn("Initial session check failed", zap.Error(err))
	}

	interval := e.cfg.Refresh.Health
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting auth health monitor", zap.Duration("interval", interval))
	e.monitorHealth(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping dashboard engine...")
			e.Flash.Stop()
			return
		case <-e.Session.Changed():
			e.monitorHealth(ctx)
		case <-ticker.C:
			e.monitorHealth(ctx)
		}
	}
}

func (e *Engine) monitorHealth(ctx context.Context) {
	if !e.Session.IsAuthenticated() && !e.Session.WasAuthenticated() {
		return
	}
	e.CheckHealth(ctx)
}

// CheckHealth probes the auth API and the auth client once. It reports false
// when either is down.
func (e *Engine) CheckHealth(ctx context.Context) bool {
	healthy := true

	if err := e.auth.Health(ctx); err != nil {
		healthy = false
		if !restclient.IsNetworkError(err) {
			err = &restclient.NetworkError{Method: "GET", Path: "/health", Err: err}
		}
		e.Errors.HandleAuthAPIError(err, "health-monitor")
	}

	if err := e.auth.ClientHealth(ctx); err != nil {
		healthy = false
		e.Errors.HandleAuthClientDown(err, "health-monitor")
	}

	if healthy {
		e.Errors.Reset()
	}
	return healthy
}

// Reload is the retry action offered with a retryable error: it clears the
// error and identity caches, re-checks the session and refetches every
// live query.
func (e *Engine) Reload(ctx context.Context) error {
	e.Errors.Reset()
	e.resolver.Clear()
	err := e.Session.Check(ctx)
	e.Queries.InvalidateAll()
	return err
}

// ShouldShowWelcome reports whether the one-time welcome note should be shown
// for watchlistID. It returns true at most once per installation: the first
// time watchlist 1 is displayed with its default symbols loaded.
func (e *Engine) ShouldShowWelcome(watchlistID int, defaultsLoaded bool) bool {
	if watchlistID != 1 || !defaultsLoaded {
		return false
	}
	shown, err := e.prefs.GetBool(database.KeyWelcomeShown)
	if err != nil {
		e.logger.Error("Failed to read welcome flag", zap.Error(err))
		return false
	}
	if shown {
		return false
	}
	if err := e.prefs.SetBool(database.KeyWelcomeShown, true); err != nil {
		e.logger.Error("Failed to persist welcome flag", zap.Error(err))
	}
	return true
}

// DismissWelcome forgets that the welcome note was shown.
func (e *Engine) DismissWelcome() error {
	return e.prefs.Delete(database.KeyWelcomeShown)
}

// Highlight feeds rows through the flash tracker and returns the flash state
// per symbol.
func (e *Engine) Highlight(rows []models.TradeRow) map[string]pricefx.Flash {
	out := make(map[string]pricefx.Flash, len(rows))
	for _, r := range rows {
		out[r.Symbol] = e.Flash.Observe(r.Symbol, r.LastPrice)
	}
	return out
}

// HoldingsFlashPrefix keys holdings in the flash tracker. A holding's last
// price is not a trade row's last price, so the two are tracked apart.
const HoldingsFlashPrefix = "holdings:"

// HighlightHoldings is Highlight for holdings. The returned flashes carry the
// plain symbol.
func (e *Engine) HighlightHoldings(holdings []models.Holding) map[string]pricefx.Flash {
	out := make(map[string]pricefx.Flash, len(holdings))
	for _, h := range holdings {
		f := e.Flash.Observe(HoldingsFlashPrefix+h.Symbol, h.LastPrice)
		f.Symbol = h.Symbol
		out[h.Symbol] = f
	}
	return out
}

// UserError turns err into the categorized error shown to the user, if it is
// one.
func UserError(err error) (*autherr.Error, bool) {
	if err == nil {
		return nil, false
	}
	if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, ErrSignInRequired) {
		return &autherr.Error{
			Category: autherr.UserNotFound,
			Message:  "Authentication required",
			Details:  "Please sign in to access this feature.",
			Cause:    err,
		}, true
	}
	return autherr.As(err)
}
