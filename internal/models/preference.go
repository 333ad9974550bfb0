package models

import "gorm.io/gorm"

// Preference is a persisted local flag, such as whether the welcome message
// was shown. Only the dashboard's own UI state is stored here.
type Preference struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value string `gorm:"not null"`
}
