package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradezone-dashboard/internal/config"
	"tradezone-dashboard/internal/database"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/restclient"
)

// MockTradingAPI is a mock implementation of tradingapi.Interface.
type MockTradingAPI struct {
	mock.Mock
}

func (m *MockTradingAPI) Holdings(ctx context.Context, userID int64) ([]models.Holding, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Holding), args.Error(1)
}

func (m *MockTradingAPI) MyHoldings(ctx context.Context) (models.HoldingsSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.HoldingsSummary), args.Error(1)
}

func (m *MockTradingAPI) HoldingTrades(ctx context.Context, symbol string) ([]models.TradeDetail, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).([]models.TradeDetail), args.Error(1)
}

func (m *MockTradingAPI) Buy(ctx context.Context, symbol string, qty int64) (bool, error) {
	args := m.Called(ctx, symbol, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockTradingAPI) Sell(ctx context.Context, symbol string, qty int64) (bool, error) {
	args := m.Called(ctx, symbol, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockTradingAPI) LatestTradeDate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTradingAPI) TradesByDate(ctx context.Context, date string, live bool) ([]models.TradeRow, error) {
	args := m.Called(ctx, date, live)
	return args.Get(0).([]models.TradeRow), args.Error(1)
}

func (m *MockTradingAPI) Symbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTradingAPI) PriceHistory(ctx context.Context, symbol, timeRange string) ([]models.TradeRow, error) {
	args := m.Called(ctx, symbol, timeRange)
	return args.Get(0).([]models.TradeRow), args.Error(1)
}

func (m *MockTradingAPI) LatestPrice(ctx context.Context, symbol string) (models.TradeRow, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(models.TradeRow), args.Error(1)
}

func (m *MockTradingAPI) WatchlistSymbols(ctx context.Context, watchlistID int) ([]string, error) {
	args := m.Called(ctx, watchlistID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTradingAPI) Watchlists(ctx context.Context) (models.Watchlists, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Watchlists), args.Error(1)
}

func (m *MockTradingAPI) WatchlistTrades(ctx context.Context, date string, watchlistID int) ([]models.TradeRow, error) {
	args := m.Called(ctx, date, watchlistID)
	return args.Get(0).([]models.TradeRow), args.Error(1)
}

func (m *MockTradingAPI) AddWatchlistSymbol(ctx context.Context, watchlistID int, symbol string) error {
	return m.Called(ctx, watchlistID, symbol).Error(0)
}

func (m *MockTradingAPI) RemoveWatchlistSymbol(ctx context.Context, watchlistID int, symbol string) error {
	return m.Called(ctx, watchlistID, symbol).Error(0)
}

func (m *MockTradingAPI) CreateWatchlist(ctx context.Context, watchlistID int) error {
	return m.Called(ctx, watchlistID).Error(0)
}

func (m *MockTradingAPI) DeleteWatchlist(ctx context.Context, watchlistID int) error {
	return m.Called(ctx, watchlistID).Error(0)
}

// MockAuthAPI is a mock implementation of authapi.Interface.
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Me(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockAuthAPI) GuestLogin(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockAuthAPI) UpdateRole(ctx context.Context, role string) error {
	return m.Called(ctx, role).Error(0)
}

func (m *MockAuthAPI) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuthAPI) TradingUserID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuthAPI) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuthAPI) ClientHealth(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuthAPI) SignInURL(redirectTo string) string {
	return "http://signin.test/signin?source=demo-trade-ui"
}

var (
	trader = &models.User{ID: "u-trader", Email: "trader@example.com", Role: models.RoleTrader}
	guest  = &models.User{ID: "u-guest", Email: "guest-1@example.com", Role: models.RoleGuest}
)

type testEnv struct {
	engine  *Engine
	trading *MockTradingAPI
	auth    *MockAuthAPI
	prefs   *database.PreferenceStore
	cookies *restclient.CookieSession
}

func testConfig() config.Config {
	return config.Config{
		Refresh: config.Refresh{
			Trades:           time.Hour,
			Holdings:         time.Hour,
			Watchlist:        time.Hour,
			WatchlistSymbols: time.Hour,
			LatestPrice:      time.Hour,
			LatestTradeDate:  time.Hour,
			Health:           time.Hour,
		},
		Identity: config.Identity{CacheTTL: 5 * time.Minute},
		Flash:    config.Flash{Threshold: 1.0, Duration: time.Minute},
		Errors:   config.Errors{DedupWindow: 5 * time.Second},
	}
}

// setupTest creates an engine with mock APIs and an in-memory preference store.
func setupTest(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		trading: new(MockTradingAPI),
		auth:    new(MockAuthAPI),
		prefs:   database.NewPreferenceStore(db),
		cookies: restclient.NewCookieSession("token"),
	}
	env.engine = NewEngine(ctx, zap.NewNop(), testConfig(), env.trading, env.auth, env.cookies, env.prefs)
	t.Cleanup(env.engine.Flash.Stop)
	return env
}

// signIn makes user the session user.
func (env *testEnv) signIn(t *testing.T, user *models.User) {
	env.auth.On("Me", mock.Anything).Return(user, nil).Once()
	require.NoError(t, env.engine.Session.Check(context.Background()))
}
