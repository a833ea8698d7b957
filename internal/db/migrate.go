package db

import (
	"coin_portal/internal/domain" // Importing domain models
	"errors"                      // Error inspection
	"time"                        // Timestamps

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// SettingsSeed holds the values written to the settings row when it does not exist yet
type SettingsSeed struct {
	CostPerCall   int64
	ReferralBonus int64
	WelcomeBonus  int64
}

// Migrate performs automatic migration for the database schema and seeds the settings row
func Migrate(db *gorm.DB, seed SettingsSeed) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(&domain.Account{}, &domain.Transaction{}, &domain.Notification{}, &domain.Settings{}); err != nil {
		return err
	}
	var existing domain.Settings
	err := db.First(&existing, domain.SettingsRowID).Error
	if err == nil {
		return nil // Settings already seeded, keep admin edits
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	row := domain.Settings{
		ID:            domain.SettingsRowID,
		CostPerCall:   seed.CostPerCall,
		ReferralBonus: seed.ReferralBonus,
		WelcomeBonus:  seed.WelcomeBonus,
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"cost_per_call":  row.CostPerCall,
		"referral_bonus": row.ReferralBonus,
		"welcome_bonus":  row.WelcomeBonus,
	}).Info("Settings seeded")
	return nil
}

// PromoteAdmin grants the admin role to the account registered with email
func PromoteAdmin(db *gorm.DB, email string) error {
	res := db.Model(&domain.Account{}).Where("email = ?", email).Update("role", domain.RoleAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
