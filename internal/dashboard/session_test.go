package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradezone-dashboard/internal/authapi"
	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/database"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/restclient"
)

func TestSession_CheckWithUser(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, env.prefs.SetBool(database.KeySkipGuestLogin, true))

	env.signIn(t, trader)

	s := env.engine.Session
	assert.Equal(t, "u-trader", s.User().ID)
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.WasAuthenticated())
	assert.True(t, s.CanTrade())
	assert.False(t, s.Suspended())

	skip, err := env.prefs.GetBool(database.KeySkipGuestLogin)
	require.NoError(t, err)
	assert.False(t, skip)
	env.auth.AssertNotCalled(t, "GuestLogin", mock.Anything)
}

func TestSession_CheckSuspended(t *testing.T) {
	env := setupTest(t)
	inactive := false
	env.signIn(t, &models.User{ID: "u1", Email: "x@example.com", Role: models.RoleTrader, IsActive: &inactive})

	assert.True(t, env.engine.Session.Suspended())
	assert.False(t, env.engine.Session.CanTrade())
}

func TestSession_CheckFallsBackToGuest(t *testing.T) {
	env := setupTest(t)
	env.auth.On("Me", mock.Anything).Return(nil, authapi.ErrNoUser).Once()
	env.auth.On("GuestLogin", mock.Anything).Return(guest, nil).Once()

	require.NoError(t, env.engine.Session.Check(context.Background()))

	s := env.engine.Session
	assert.Equal(t, "u-guest", s.User().ID)
	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.CanTrade())
	env.auth.AssertExpectations(t)
}

func TestSession_CheckSkipsGuestAfterSignOut(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, env.prefs.SetBool(database.KeySkipGuestLogin, true))
	env.auth.On("Me", mock.Anything).Return(nil, authapi.ErrNoUser).Once()

	require.NoError(t, env.engine.Session.Check(context.Background()))

	assert.Nil(t, env.engine.Session.User())
	env.auth.AssertNotCalled(t, "GuestLogin", mock.Anything)
}

func TestSession_CheckAuthAPIDown(t *testing.T) {
	env := setupTest(t)
	down := &restclient.NetworkError{Method: "GET", Path: "/api/auth/me", Err: errors.New("connection refused")}
	env.auth.On("Me", mock.Anything).Return(nil, down).Once()
	env.auth.On("GuestLogin", mock.Anything).Return(nil, down).Once()

	var notified []*autherr.Error
	env.engine.Errors.OnError(func(e *autherr.Error) { notified = append(notified, e) })

	err := env.engine.Session.Check(context.Background())

	ae, ok := autherr.As(err)
	require.True(t, ok)
	assert.Equal(t, autherr.AuthAPIDown, ae.Category)
	assert.True(t, ae.Retryable)
	// the guest login failure is a duplicate inside the dedup window
	assert.Len(t, notified, 1)
}

func TestSession_SignOut(t *testing.T) {
	env := setupTest(t)
	env.signIn(t, trader)
	env.auth.On("SignOut", mock.Anything).Return(errors.New("unreachable")).Once()

	err := env.engine.Session.SignOut(context.Background())

	assert.Error(t, err)
	assert.Nil(t, env.engine.Session.User())
	assert.Empty(t, env.cookies.Token())
	assert.True(t, env.engine.Session.WasAuthenticated())
	skip, _ := env.prefs.GetBool(database.KeySkipGuestLogin)
	assert.True(t, skip)
}

func TestSession_LoginAsGuestClearsSkipFlag(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, env.prefs.SetBool(database.KeySkipGuestLogin, true))
	env.auth.On("GuestLogin", mock.Anything).Return(guest, nil).Once()

	require.NoError(t, env.engine.Session.LoginAsGuest(context.Background()))

	assert.Equal(t, "u-guest", env.engine.Session.User().ID)
	skip, _ := env.prefs.GetBool(database.KeySkipGuestLogin)
	assert.False(t, skip)
}

func TestSession_UpgradeToTrader(t *testing.T) {
	t.Run("GuestMustSignIn", func(t *testing.T) {
		env := setupTest(t)
		env.signIn(t, guest)
		env.auth.On("SignOut", mock.Anything).Return(nil).Once()

		err := env.engine.Session.UpgradeToTrader(context.Background())

		assert.ErrorIs(t, err, ErrSignInRequired)
		assert.Nil(t, env.engine.Session.User())
		env.auth.AssertNotCalled(t, "UpdateRole", mock.Anything, mock.Anything)
	})

	t.Run("UserIsUpgraded", func(t *testing.T) {
		env := setupTest(t)
		viewer := &models.User{ID: "u2", Email: "viewer@example.com", Role: "viewer"}
		env.signIn(t, viewer)
		assert.False(t, env.engine.Session.CanTrade())

		env.auth.On("UpdateRole", mock.Anything, models.RoleTrader).Return(nil).Once()
		env.auth.On("Me", mock.Anything).Return(&models.User{ID: "u2", Email: "viewer@example.com", Role: models.RoleTrader}, nil).Once()

		require.NoError(t, env.engine.Session.UpgradeToTrader(context.Background()))
		assert.True(t, env.engine.Session.CanTrade())
	})
}

func TestSession_TradingUserID(t *testing.T) {
	t.Run("GuestHasNone", func(t *testing.T) {
		env := setupTest(t)
		env.signIn(t, guest)

		_, err := env.engine.Session.TradingUserID(context.Background())

		assert.ErrorIs(t, err, ErrNotAuthenticated)
		env.auth.AssertNotCalled(t, "TradingUserID", mock.Anything)
	})

	t.Run("CachedUntilUserChanges", func(t *testing.T) {
		env := setupTest(t)
		env.signIn(t, trader)
		env.auth.On("TradingUserID", mock.Anything).Return(int64(42), nil).Twice()

		for i := 0; i < 3; i++ {
			id, err := env.engine.Session.TradingUserID(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(42), id)
		}
		env.auth.AssertNumberOfCalls(t, "TradingUserID", 1)

		env.signIn(t, &models.User{ID: "other", Email: "other@example.com", Role: models.RoleTrader})
		_, err := env.engine.Session.TradingUserID(context.Background())
		require.NoError(t, err)
		env.auth.AssertNumberOfCalls(t, "TradingUserID", 2)
	})
}
