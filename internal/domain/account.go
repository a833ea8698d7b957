package domain

import "time"

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"    // Account may authenticate and spend coins
	StatusSuspended AccountStatus = "suspended" // Account is locked out of user-facing actions
)

// Valid reports whether s is a known account status
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Role distinguishes regular users from administrators
type Role string

const (
	RoleUser  Role = "user"  // Regular portal user
	RoleAdmin Role = "admin" // Administrator with access to the admin panel
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Account Model
type Account struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`                               // Primary key (uuid)
	Email        string        `gorm:"uniqueIndex;size:255;not null" json:"email"`                 // Unique lowercased email
	DisplayName  string        `gorm:"size:255" json:"display_name"`                               // Optional display name
	Password     string        `gorm:"size:255;not null" json:"-"`                                 // Hashed password
	Role         Role          `gorm:"size:16;not null;default:user" json:"role"`                  // Role: user or admin
	APIKey       string        `gorm:"column:api_key;uniqueIndex;size:64;not null" json:"api_key"` // Current API key
	ReferralCode string        `gorm:"uniqueIndex;size:16;not null" json:"referral_code"`          // Code other users sign up with
	ReferredBy   *string       `gorm:"size:36" json:"referred_by,omitempty"`                       // Referrer account ID
	Balance      int64         `gorm:"not null;default:0;check:chk_accounts_balance,balance >= 0" json:"balance"`
	Status       AccountStatus `gorm:"size:16;not null;default:active;index" json:"status"` // active or suspended
	TotalCalls   int64         `gorm:"not null;default:0" json:"total_calls"`                // Billed API calls served
	Revision     int64         `gorm:"not null;default:0" json:"revision"`                   // Bumped on every committed change
	CreatedAt    time.Time     `json:"created_at"`
}

// IsAdmin reports whether the account carries the admin role
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// IsActive reports whether the account may perform user-facing mutations
func (a *Account) IsActive() bool {
	return a != nil && a.Status == StatusActive
}
