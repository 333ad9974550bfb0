package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *PreferenceStore {
	// Use a new, non-shared in-memory database for each test to ensure isolation.
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))
	return NewPreferenceStore(db)
}

func TestPreferenceStore(t *testing.T) {
	t.Run("MissingKeyIsFalse", func(t *testing.T) {
		store := setupStore(t)
		v, err := store.GetBool(KeyWelcomeShown)
		assert.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("SetAndOverwrite", func(t *testing.T) {
		store := setupStore(t)
		require.NoError(t, store.SetBool(KeySkipGuestLogin, true))

		v, err := store.GetBool(KeySkipGuestLogin)
		assert.NoError(t, err)
		assert.True(t, v)

		require.NoError(t, store.SetBool(KeySkipGuestLogin, false))
		v, err = store.GetBool(KeySkipGuestLogin)
		assert.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("Delete", func(t *testing.T) {
		store := setupStore(t)
		require.NoError(t, store.SetBool(KeySkipGuestLogin, true))
		require.NoError(t, store.Delete(KeySkipGuestLogin))
		require.NoError(t, store.Delete("never-set"))

		v, err := store.GetBool(KeySkipGuestLogin)
		assert.NoError(t, err)
		assert.False(t, v)
	})
}

func TestNewDatabase(t *testing.T) {
	db, err := NewDatabase("file::memory:")
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("preferences"))
}
