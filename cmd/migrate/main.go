package main

import (
	"coin_portal/internal/config" // Custom import path (Config)
	"coin_portal/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration

	database, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	seed := db.SettingsSeed{
		CostPerCall:   cfg.CostPerCall,
		ReferralBonus: cfg.ReferralBonus,
		WelcomeBonus:  cfg.SignupBonus,
	}
	if err := db.Migrate(database, seed); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	logrus.Info("Migration completed")

	if cfg.AdminEmail != "" {
		if err := db.PromoteAdmin(database, cfg.AdminEmail); err != nil {
			logrus.Fatalf("failed to promote %s: %v", cfg.AdminEmail, err)
		}
		logrus.WithField("email", cfg.AdminEmail).Info("Admin promoted")
	}
}
