package domain

import "time"

// Settings holds the admin-editable business configuration. A single row with ID 1 exists.
type Settings struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	CostPerCall   int64     `gorm:"not null" json:"cost_per_call"`  // Coins debited per billed API call
	ReferralBonus int64     `gorm:"not null" json:"referral_bonus"` // Coins paid to a referrer
	WelcomeBonus  int64     `gorm:"not null" json:"welcome_bonus"`  // Coins granted at signup
	UpdatedBy     string    `gorm:"size:36" json:"updated_by,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SettingsRowID is the primary key of the only settings row
const SettingsRowID = 1
