package ledger

import (
	"coin_portal/internal/domain" // Domain models
	"context"                     // Request context
	"fmt"                         // Error wrapping
	"sync"                        // Settings guard
	"time"                        // Update timestamps

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Settings is the in-memory copy of the admin-editable business configuration. It is loaded
// once at start, replaced by UpdateSettings and refreshed by Reload.
type Settings struct {
	mu      sync.RWMutex
	db      *gorm.DB
	current domain.Settings
}

// NewSettings returns settings holding initial without a backing store
func NewSettings(initial domain.Settings) *Settings {
	return &Settings{current: initial}
}

// LoadSettings reads the settings row
func LoadSettings(ctx context.Context, db *gorm.DB) (*Settings, error) {
	s := &Settings{db: db}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns a snapshot of the settings
func (s *Settings) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the settings row, picking up updates made by other instances
func (s *Settings) Reload(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	var row domain.Settings
	if err := s.db.WithContext(ctx).First(&row, domain.SettingsRowID).Error; err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.set(row)
	return nil
}

func (s *Settings) set(row domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = row
}

// SettingsPatch carries the fields an admin wants to change. Nil fields are kept.
type SettingsPatch struct {
	CostPerCall   *int64 `json:"cost_per_call"`
	ReferralBonus *int64 `json:"referral_bonus"`
	WelcomeBonus  *int64 `json:"welcome_bonus"`
}

func (p SettingsPatch) apply(row *domain.Settings) error {
	for _, v := range []*int64{p.CostPerCall, p.ReferralBonus, p.WelcomeBonus} {
		if v != nil && *v < 0 {
			return domain.ErrInvalidAmount
		}
	}
	if p.CostPerCall != nil {
		row.CostPerCall = *p.CostPerCall
	}
	if p.ReferralBonus != nil {
		row.ReferralBonus = *p.ReferralBonus
	}
	if p.WelcomeBonus != nil {
		row.WelcomeBonus = *p.WelcomeBonus
	}
	return nil
}

// UpdateSettings persists patch and swaps the in-memory settings. Admin only.
func (s *Service) UpdateSettings(ctx context.Context, actorID string, patch SettingsPatch) (domain.Settings, error) {
	var updated domain.Settings
	err := s.run(ctx, "update_settings", func(u *unit) error {
		if _, err := u.requireAdmin(actorID); err != nil {
			return err
		}
		if err := u.tx.First(&updated, domain.SettingsRowID).Error; err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		if err := patch.apply(&updated); err != nil {
			return err
		}
		updated.UpdatedBy = actorID
		updated.UpdatedAt = time.Now()
		return u.tx.Save(&updated).Error
	})
	if err != nil {
		return domain.Settings{}, err
	}
	s.settings.set(updated)
	s.log.WithFields(logrus.Fields{
		"actor_id":       actorID,
		"cost_per_call":  updated.CostPerCall,
		"referral_bonus": updated.ReferralBonus,
		"welcome_bonus":  updated.WelcomeBonus,
	}).Info("Settings updated")
	return updated, nil
}
