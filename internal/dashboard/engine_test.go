package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/pricefx"
	"tradezone-dashboard/internal/restclient"
)

func TestCheckHealth(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		env := setupTest(t)
		env.auth.On("Health", mock.Anything).Return(nil)
		env.auth.On("ClientHealth", mock.Anything).Return(nil)
		env.engine.Errors.HandleAuthAPIError(&restclient.StatusError{StatusCode: 500}, "test")
		require.NotNil(t, env.engine.Errors.Last())

		assert.True(t, env.engine.CheckHealth(context.Background()))
		assert.Nil(t, env.engine.Errors.Last())
	})

	t.Run("AuthAPIDown", func(t *testing.T) {
		env := setupTest(t)
		env.auth.On("Health", mock.Anything).Return(&restclient.StatusError{StatusCode: 503})
		env.auth.On("ClientHealth", mock.Anything).Return(nil)

		assert.False(t, env.engine.CheckHealth(context.Background()))
		assert.Equal(t, autherr.AuthAPIDown, env.engine.Errors.Last().Category)
		assert.True(t, env.engine.Errors.Last().Retryable)
	})

	t.Run("AuthClientDown", func(t *testing.T) {
		env := setupTest(t)
		env.auth.On("Health", mock.Anything).Return(nil)
		env.auth.On("ClientHealth", mock.Anything).Return(errors.New("refused"))

		assert.False(t, env.engine.CheckHealth(context.Background()))
		assert.Equal(t, autherr.AuthClientDown, env.engine.Errors.Last().Category)
	})
}

func TestRun_MonitorsHealthOnlyForSignedInUsers(t *testing.T) {
	t.Run("Guest", func(t *testing.T) {
		env := setupTest(t)
		env.auth.On("Me", mock.Anything).Return(guest, nil).Once()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		env.engine.Run(ctx)

		env.auth.AssertNotCalled(t, "Health", mock.Anything)
	})

	t.Run("Trader", func(t *testing.T) {
		env := setupTest(t)
		env.auth.On("Me", mock.Anything).Return(trader, nil).Once()
		env.auth.On("Health", mock.Anything).Return(nil)
		env.auth.On("ClientHealth", mock.Anything).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			env.engine.Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			return env.engine.Session.IsAuthenticated()
		}, time.Second, 5*time.Millisecond)
		cancel()
		<-done

		env.auth.AssertCalled(t, "Health", mock.Anything)
	})
}

func TestReload(t *testing.T) {
	env := setupTest(t)
	env.signIn(t, trader)
	env.engine.Errors.HandleAuthAPIError(&restclient.NetworkError{Err: errors.New("down")}, "test")
	env.auth.On("Me", mock.Anything).Return(trader, nil).Once()

	require.NoError(t, env.engine.Reload(context.Background()))

	assert.Nil(t, env.engine.Errors.Last())
	env.auth.AssertNumberOfCalls(t, "Me", 2)
}

func TestShouldShowWelcome(t *testing.T) {
	env := setupTest(t)

	assert.False(t, env.engine.ShouldShowWelcome(2, true))
	assert.False(t, env.engine.ShouldShowWelcome(1, false))
	assert.True(t, env.engine.ShouldShowWelcome(1, true))
	assert.False(t, env.engine.ShouldShowWelcome(1, true))

	require.NoError(t, env.engine.DismissWelcome())
	assert.True(t, env.engine.ShouldShowWelcome(1, true))
}

func TestHighlight(t *testing.T) {
	env := setupTest(t)
	row := func(price string) []models.TradeRow {
		return []models.TradeRow{{Symbol: "INFY", LastPrice: decimal.RequireFromString(price)}}
	}

	assert.False(t, env.engine.Highlight(row("100"))["INFY"].Active)
	flash := env.engine.Highlight(row("98"))["INFY"]

	assert.True(t, flash.Active)
	assert.Equal(t, pricefx.Down, flash.Direction)
}

func TestHighlight_HoldingsTrackedApartFromTrades(t *testing.T) {
	env := setupTest(t)
	rows := []models.TradeRow{{Symbol: "TCS", LastPrice: decimal.NewFromInt(100)}}
	holdings := func(price int64) []models.Holding {
		return []models.Holding{{Symbol: "TCS", LastPrice: decimal.NewFromInt(price)}}
	}

	assert.False(t, env.engine.Highlight(rows)["TCS"].Active)
	assert.False(t, env.engine.HighlightHoldings(holdings(90))["TCS"].Active)
	for i := 0; i < 3; i++ {
		assert.False(t, env.engine.Highlight(rows)["TCS"].Active)
		assert.False(t, env.engine.HighlightHoldings(holdings(90))["TCS"].Active)
	}
	assert.Empty(t, env.engine.Flash.Active())

	flash := env.engine.HighlightHoldings(holdings(95))["TCS"]
	assert.True(t, flash.Active)
	assert.Equal(t, pricefx.Up, flash.Direction)
	assert.Equal(t, "TCS", flash.Symbol)
	assert.False(t, env.engine.Flash.State("TCS").Active)
}

func TestWatchHoldings(t *testing.T) {
	t.Run("GuestNotAllowed", func(t *testing.T) {
		env := setupTest(t)
		env.signIn(t, guest)

		_, err := env.engine.WatchHoldings()

		assert.ErrorIs(t, err, ErrNotAuthenticated)
		ae, ok := UserError(err)
		require.True(t, ok)
		assert.Equal(t, autherr.UserNotFound, ae.Category)
	})

	t.Run("MappingFailure", func(t *testing.T) {
		env := setupTest(t)
		env.signIn(t, trader)
		env.auth.On("TradingUserID", mock.Anything).Return(int64(0), &restclient.StatusError{StatusCode: 404})

		obs, err := env.engine.WatchHoldings()
		require.NoError(t, err)
		defer obs.Close()

		require.Eventually(t, func() bool { return obs.State().Err != nil }, time.Second, 5*time.Millisecond)
		ae, ok := UserError(obs.State().Err)
		require.True(t, ok)
		assert.Equal(t, autherr.MappingFailed, ae.Category)
		assert.False(t, ae.Retryable)
		assert.False(t, obs.State().HasData)
		env.trading.AssertNotCalled(t, "Holdings", mock.Anything, mock.Anything)
	})

	t.Run("Polls", func(t *testing.T) {
		env := setupTest(t)
		env.signIn(t, trader)
		env.auth.On("TradingUserID", mock.Anything).Return(int64(7), nil)
		env.trading.On("Holdings", mock.Anything, int64(7)).Return([]models.Holding{{Symbol: "SBIN"}}, nil)

		obs, err := env.engine.WatchHoldings()
		require.NoError(t, err)
		defer obs.Close()

		require.Eventually(t, func() bool { return obs.State().HasData }, time.Second, 5*time.Millisecond)
		assert.Equal(t, "SBIN", obs.State().Data[0].Symbol)
	})
}

func TestWatchTrades(t *testing.T) {
	env := setupTest(t)
	env.trading.On("LatestTradeDate", mock.Anything).Return("2024-10-16", nil)
	env.trading.On("TradesByDate", mock.Anything, "2024-10-16", true).Return([]models.TradeRow{{Symbol: "TCS"}}, nil)

	date := env.engine.WatchLatestTradeDate()
	defer date.Close()
	require.Eventually(t, func() bool { return date.State().HasData }, time.Second, 5*time.Millisecond)

	disabled := env.engine.WatchTrades("", true)
	assert.False(t, disabled.State().HasData)

	trades := env.engine.WatchTrades(date.State().Data, true)
	defer trades.Close()
	require.Eventually(t, func() bool { return trades.State().HasData }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "TCS", trades.State().Data[0].Symbol)
}
