package ledger

import (
	"coin_portal/internal/db"     // Duplicate key detection
	"coin_portal/internal/domain" // Domain models
	"coin_portal/internal/utils"  // API keys and referral codes
	"context"                     // Request context
	"errors"                      // Error inspection
	"fmt"                         // Error wrapping
	"strings"                     // Email normalization

	"github.com/google/uuid"     // Account ids
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// referralCodeAttempts bounds the retries on referral code collisions
const referralCodeAttempts = 5

// NewAccount is the input of CreateAccount
type NewAccount struct {
	Email        string
	DisplayName  string
	PasswordHash string
	ReferralCode string // Optional code of the referring account
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers an account funded with the welcome bonus. The account, its
// signup_bonus transaction, the welcome notification and any referral payout commit together.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*domain.Account, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	settings := s.settings.Current()

	var created domain.Account
	err := s.run(ctx, "create_account", func(u *unit) error {
		var taken int64
		if err := u.tx.Model(&domain.Account{}).Where("email = ?", email).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return domain.ErrEmailTaken
		}

		var referrer *domain.Account
		if code := strings.ToUpper(strings.TrimSpace(in.ReferralCode)); code != "" {
			var ref domain.Account
			err := u.tx.Where("referral_code = ?", code).First(&ref).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrInvalidReferral
			}
			if err != nil {
				return err
			}
			if !ref.IsActive() {
				return domain.ErrInvalidReferral
			}
			referrer = &ref
		}

		apiKey, err := utils.NewAPIKey()
		if err != nil {
			return err
		}
		created = domain.Account{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: strings.TrimSpace(in.DisplayName),
			Password:    in.PasswordHash,
			Role:        domain.RoleUser,
			APIKey:      apiKey,
			Balance:     settings.WelcomeBonus,
			Status:      domain.StatusActive,
		}
		if referrer != nil {
			created.ReferredBy = &referrer.ID
		}
		if err := u.insertAccount(&created); err != nil {
			return err
		}
		u.touch(created.ID)

		if settings.WelcomeBonus > 0 {
			if _, err := u.record(created.ID, domain.TxSignupBonus, settings.WelcomeBonus, "Welcome bonus", "", nil); err != nil {
				return err
			}
		}
		if _, err := u.notify(created.ID, NotificationInput{
			Type:    domain.NotifyAnnouncement,
			Title:   "Welcome to the API marketplace",
			Message: fmt.Sprintf("Your account is ready and %d coins have been added to your balance. Use your API key to start calling endpoints.", settings.WelcomeBonus),
		}, nil); err != nil {
			return err
		}

		if referrer != nil && settings.ReferralBonus > 0 {
			if err := u.addBalance(referrer.ID, settings.ReferralBonus); err != nil {
				return err
			}
			if _, err := u.record(referrer.ID, domain.TxReferral, settings.ReferralBonus, "Referral bonus for "+email, email, nil); err != nil {
				return err
			}
			if _, err := u.notify(referrer.ID, NotificationInput{
				Type:    domain.NotifyInfo,
				Title:   "Referral bonus",
				Message: fmt.Sprintf("%s signed up with your referral code. You earned %d coins.", email, settings.ReferralBonus),
			}, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"email": email, "error": err.Error()}).Warn("Account creation failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"account_id": created.ID,
		"balance":    created.Balance,
		"referred":   created.ReferredBy != nil,
	}).Info("Account created")
	return s.GetAccount(ctx, created.ID)
}

// insertAccount writes acc with a fresh referral code, drawing another one when the code is
// already in use. A concurrent signup that claimed the email first surfaces as ErrEmailTaken.
func (u *unit) insertAccount(acc *domain.Account) error {
	for attempt := 1; ; attempt++ {
		code, err := utils.NewReferralCode()
		if err != nil {
			return err
		}
		acc.ReferralCode = code
		err = u.tx.Create(acc).Error
		switch {
		case err == nil:
			return nil
		case db.IsDuplicateOn(err, "referral_code") && attempt < referralCodeAttempts:
			continue // Collision on the short code
		case db.IsDuplicateOn(err, "email"):
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("create account: %w", err)
		}
	}
}

// GetAccount returns the account with id, served from cache when possible. Cache entries are
// tagged with the account revision and never replaced by an older one, so a read that races a
// commit cannot pin a stale balance or status.
func (s *Service) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	key := accountCacheKeyPrefix + id
	var cached domain.Account
	found, deleted, err := s.cache.GetVersioned(ctx, key, &cached)
	if err != nil {
		s.log.WithFields(logrus.Fields{"account_id": id, "error": err.Error()}).Warn("Account cache read failed")
	}
	if err == nil && found {
		if deleted {
			return nil, domain.ErrAccountNotFound
		}
		return &cached, nil
	}

	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if _, err := s.cache.SetVersioned(ctx, key, acc.Revision, acc); err != nil {
		s.log.WithFields(logrus.Fields{"account_id": id, "error": err.Error()}).Warn("Account cache write failed")
	}
	return &acc, nil
}

// FindAccountByID reads an account straight from the database, bypassing the cache
func (s *Service) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.findAccount(ctx, "id = ?", id)
}

// FindAccountByEmail looks an account up by email
func (s *Service) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findAccount(ctx, "email = ?", NormalizeEmail(email))
}

// FindAccountByAPIKey resolves an API key. It always reads the database so a regenerated key
// stops working as soon as the regeneration commits.
func (s *Service) FindAccountByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error) {
	if !utils.IsAPIKey(apiKey) {
		return nil, domain.ErrAccountNotFound
	}
	return s.findAccount(ctx, "api_key = ?", apiKey)
}

func (s *Service) findAccount(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.WithContext(ctx).Where(query, arg).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// SetStatus activates or suspends an account and tells its owner. Admin only. Setting the
// current status again is a no-op.
func (s *Service) SetStatus(ctx context.Context, actorID, id string, status domain.AccountStatus) (*domain.Account, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	changed := false
	err := s.run(ctx, "set_status", func(u *unit) error {
		if _, err := u.requireAdmin(actorID); err != nil {
			return err
		}
		acc, err := u.loadAccount(id)
		if err != nil {
			return err
		}
		if acc.Status == status {
			return nil
		}
		if err := u.tx.Model(&domain.Account{}).Where("id = ?", id).Update("status", status).Error; err != nil {
			return err
		}
		changed = true
		u.touch(id)

		var note NotificationInput
		switch status {
		case domain.StatusSuspended:
			note = NotificationInput{
				Type:    domain.NotifyWarning,
				Title:   "Account suspended",
				Message: "Your account has been suspended by an administrator. API calls and coin transfers are disabled until it is reactivated.",
			}
		case domain.StatusActive:
			note = NotificationInput{
				Type:    domain.NotifyInfo,
				Title:   "Account reactivated",
				Message: "Your account has been reactivated. You can use the marketplace again.",
			}
		}
		_, err = u.notify(id, note, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.WithFields(logrus.Fields{"actor_id": actorID, "account_id": id, "status": status}).Info("Account status changed")
	}
	return s.GetAccount(ctx, id)
}

// RegenerateAPIKey replaces the account API key. The owner (while active) or an admin may do it.
func (s *Service) RegenerateAPIKey(ctx context.Context, actorID, id string) (string, error) {
	var key string
	err := s.run(ctx, "regenerate_api_key", func(u *unit) error {
		var err error
		if actorID == id {
			_, err = u.requireActive(id)
		} else {
			if _, err = u.requireAdmin(actorID); err == nil {
				_, err = u.loadAccount(id)
			}
		}
		if err != nil {
			return err
		}
		if key, err = utils.NewAPIKey(); err != nil {
			return err
		}
		if err := u.tx.Model(&domain.Account{}).Where("id = ?", id).Update("api_key", key).Error; err != nil {
			return err
		}
		u.touch(id)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"actor_id": actorID, "account_id": id}).Info("API key regenerated")
	return key, nil
}

// DeleteAccount removes an account with all its transactions and notifications. The owner
// (after re-authentication by the caller) or an admin may do it. Irreversible.
func (s *Service) DeleteAccount(ctx context.Context, actorID, id string) error {
	err := s.run(ctx, "delete_account", func(u *unit) error {
		var acc *domain.Account
		var err error
		if actorID == id {
			acc, err = u.requireActive(id) // Suspended owners cannot erase their own history
		} else if _, err = u.requireAdmin(actorID); err == nil {
			acc, err = u.loadAccount(id)
		}
		if err != nil {
			return err
		}
		if err := u.tx.Where("account_id = ?", id).Delete(&domain.Transaction{}).Error; err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if err := u.tx.Where("account_id = ?", id).Delete(&domain.Notification{}).Error; err != nil {
			return fmt.Errorf("delete notifications: %w", err)
		}
		if err := u.tx.Delete(&domain.Account{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		c := u.touch(id)
		c.Revision = acc.Revision + 1
		c.Deleted = true
		u.deleted[id] = true
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"actor_id": actorID, "account_id": id}).Warn("Account deleted")
	return nil
}
