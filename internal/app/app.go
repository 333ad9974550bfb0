// Package app assembles the dashboard engine from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradezone-dashboard/internal/authapi"
	"tradezone-dashboard/internal/config"
	"tradezone-dashboard/internal/dashboard"
	"tradezone-dashboard/internal/database"
	"tradezone-dashboard/internal/restclient"
	"tradezone-dashboard/internal/tradingapi"
)

// App owns the engine and the resources behind it.
type App struct {
	Engine  *dashboard.Engine
	Cookies *restclient.CookieSession

	db     *gorm.DB
	logger *zap.Logger
}

// New opens the preference database and wires the REST clients and the
// engine. The engine's queries run under ctx.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection successful and schema migrated.")

	cookies := restclient.NewCookieSession(cfg.Session.Token)

	tradingRest := restclient.New("trading", cfg.TradingAPI, cookies, logger.Named("trading-api"))
	authRest := restclient.New("auth", cfg.AuthAPI, cookies, logger.Named("auth-api"))

	// The sign-in app is only probed for health; it shares the auth API's limits.
	clientCfg := cfg.AuthAPI
	clientCfg.URL = cfg.AuthClient.URL
	clientCfg.MaxRetries = 0
	authClientRest := restclient.New("auth-client", clientCfg, nil, logger.Named("auth-client"))

	trading := tradingapi.NewClient(tradingRest, logger.Named("trading"))
	auth := authapi.NewClient(authRest, authClientRest, cfg.AuthClient, cfg.AuthAPI.HealthTimeout, logger.Named("auth"))

	engine := dashboard.NewEngine(ctx, logger, cfg, trading, auth, cookies, database.NewPreferenceStore(db))

	logger.Info("Dashboard engine initialized",
		zap.String("trading_api", tradingRest.BaseURL()),
		zap.String("auth_api", authRest.BaseURL()),
	)

	return &App{Engine: engine, Cookies: cookies, db: db, logger: logger}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}
