package database

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tradezone-dashboard/internal/models"
)

// Preference keys persisted by the dashboard.
const (
	KeySkipGuestLogin = "skip_guest_login"
	KeyWelcomeShown   = "welcome_shown"
)

// NewDatabase opens the local preference database and migrates its schema.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the tables used by the dashboard.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Preference{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// PreferenceStore reads and writes boolean UI flags.
type PreferenceStore struct {
	db *gorm.DB
}

// NewPreferenceStore creates a PreferenceStore backed by db.
func NewPreferenceStore(db *gorm.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// GetBool returns the flag stored under key, false if it was never set.
func (s *PreferenceStore) GetBool(key string) (bool, error) {
	var pref models.Preference
	err := s.db.Where("key = ?", key).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	v, err := strconv.ParseBool(pref.Value)
	if err != nil {
		return false, fmt.Errorf("preference %s holds non-boolean value %q", key, pref.Value)
	}
	return v, nil
}

// SetBool stores value under key, replacing any previous value.
func (s *PreferenceStore) SetBool(key string, value bool) error {
	pref := models.Preference{Key: key, Value: strconv.FormatBool(value)}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *PreferenceStore) Delete(key string) error {
	if err := s.db.Unscoped().Where("key = ?", key).Delete(&models.Preference{}).Error; err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}
	return nil
}
