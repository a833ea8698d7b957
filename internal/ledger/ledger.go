package ledger

import (
	"coin_portal/internal/domain" // Domain models
	"coin_portal/internal/utils"  // API key validation
	"context"                     // Request context
	"errors"                      // Error inspection
	"fmt"                         // Error wrapping

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Credit adds amount coins to the account and records a transaction of txType, which must be a
// type that adds coins.
func (s *Service) Credit(ctx context.Context, accountID string, amount int64, txType domain.TransactionType, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if txType.Sign() <= 0 {
		return nil, domain.ErrInvalidType
	}
	var t *domain.Transaction
	err := s.run(ctx, "credit", func(u *unit) error {
		if err := u.addBalance(accountID, amount); err != nil {
			return err
		}
		var err error
		t, err = u.record(accountID, txType, amount, description, "", nil)
		return err
	})
	s.logOperation("credit", accountID, amount, txType, err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Debit removes amount coins from the account and records a transaction of txType, which must
// be a type that removes coins. It fails with ErrInsufficientBalance, changing nothing, when
// the balance does not cover amount.
func (s *Service) Debit(ctx context.Context, accountID string, amount int64, txType domain.TransactionType, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if txType.Sign() >= 0 {
		return nil, domain.ErrInvalidType
	}
	var t *domain.Transaction
	err := s.run(ctx, "debit", func(u *unit) error {
		if err := u.addBalance(accountID, -amount); err != nil {
			return err
		}
		var err error
		t, err = u.record(accountID, txType, -amount, description, "", nil)
		return err
	})
	s.logOperation("debit", accountID, -amount, txType, err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TransferResult holds both sides of a transfer
type TransferResult struct {
	Sent     domain.Transaction `json:"sent"`
	Received domain.Transaction `json:"received"`
}

// Transfer moves amount coins from the sender to the account registered with toEmail.
// Both balance updates and both transactions commit together.
func (s *Service) Transfer(ctx context.Context, fromID, toEmail string, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	email := NormalizeEmail(toEmail)
	var res TransferResult
	err := s.run(ctx, "transfer", func(u *unit) error {
		sender, err := u.requireActive(fromID)
		if err != nil {
			return err
		}
		var recipient domain.Account
		if err := u.tx.Where("email = ?", email).First(&recipient).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRecipientNotFound
			}
			return err
		}
		if recipient.ID == sender.ID {
			return domain.ErrSelfTransfer
		}

		// Update rows in id order so opposite transfers cannot deadlock
		type leg struct {
			id    string
			delta int64
		}
		legs := []leg{{sender.ID, -amount}, {recipient.ID, amount}}
		if recipient.ID < sender.ID { // Lock rows in id order
			legs[0], legs[1] = legs[1], legs[0]
		}
		for _, l := range legs {
			if err := u.addBalance(l.id, l.delta); err != nil {
				return err
			}
		}

		sent, err := u.record(sender.ID, domain.TxTransferSent, -amount, "Transfer to "+recipient.Email, recipient.Email, nil)
		if err != nil {
			return err
		}
		received, err := u.record(recipient.ID, domain.TxTransferReceived, amount, "Transfer from "+sender.Email, sender.Email, nil)
		if err != nil {
			return err
		}
		if _, err := u.notify(recipient.ID, NotificationInput{
			Type:    domain.NotifyInfo,
			Title:   "Coins received",
			Message: fmt.Sprintf("%s sent you %d coins.", sender.Email, amount),
		}, nil); err != nil {
			return err
		}
		res = TransferResult{Sent: *sent, Received: *received} // Both legs for the response
		return nil
	})
	entry := s.log.WithFields(logrus.Fields{
		"from_account_id": fromID,
		"to_email":        email,
		"amount":          amount,
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("Transfer failed")
		return nil, err
	}
	entry.Info("Transfer transaction")
	return &res, nil
}

// Direction of an admin balance adjustment
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDeduct Direction = "deduct"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	switch d {
	case DirectionCredit, DirectionDeduct:
		return true
	}
	return false
}

// AdjustResult reports what an admin adjustment produced: a transaction for deductions, a
// pending reward notification for credits.
type AdjustResult struct {
	Transaction  *domain.Transaction  `json:"transaction,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// AdminAdjust changes an account balance on behalf of an admin. Deductions apply immediately
// and notify the user. Credits are only advertised: they create a coin_reward notification and
// reach the balance when the user claims it.
func (s *Service) AdminAdjust(ctx context.Context, actorID, accountID string, amount int64, direction Direction, reason string) (*AdjustResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !direction.Valid() {
		return nil, domain.ErrInvalidType
	}
	var res AdjustResult
	err := s.run(ctx, "admin_adjust", func(u *unit) error {
		if _, err := u.requireAdmin(actorID); err != nil {
			return err
		}
		if _, err := u.loadAccount(accountID); err != nil {
			return err
		}
		switch direction {
		case DirectionDeduct:
			if err := u.addBalance(accountID, -amount); err != nil {
				return err
			}
			description := "Deducted by administrator"
			if reason != "" {
				description += ": " + reason
			}
			t, err := u.record(accountID, domain.TxAdminDeduct, -amount, description, "", nil)
			if err != nil {
				return err
			}
			res.Transaction = t
			message := fmt.Sprintf("An administrator deducted %d coins from your balance.", amount)
			if reason != "" {
				message += " Reason: " + reason
			}
			n, err := u.notify(accountID, NotificationInput{
				Type:    domain.NotifyWarning,
				Title:   "Coins deducted",
				Message: message,
			}, nil)
			if err != nil {
				return err
			}
			res.Notification = n
		case DirectionCredit:
			message := fmt.Sprintf("An administrator sent you %d coins. Claim them to add them to your balance.", amount)
			if reason != "" {
				message += " Reason: " + reason
			}
			n, err := u.notify(accountID, NotificationInput{
				Type:    domain.NotifyCoinReward,
				Title:   "You received coins",
				Message: message,
				Amount:  amount,
			}, nil)
			if err != nil {
				return err
			}
			res.Notification = n
		}
		return nil
	})
	entry := s.log.WithFields(logrus.Fields{
		"actor_id":   actorID,
		"account_id": accountID,
		"amount":     amount,
		"direction":  direction,
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("Admin adjustment failed")
		return nil, err
	}
	entry.Info("Admin adjustment")
	return &res, nil
}

// UsageCharge is the receipt of a billed API call
type UsageCharge struct {
	Account *domain.Account `json:"account"`
	Cost    int64           `json:"cost"`
}

// ChargeUsage bills one third-party API call to the owner of apiKey: the configured cost per
// call is debited as usage and total calls is incremented, together. The gateway must refuse
// the call on any error.
func (s *Service) ChargeUsage(ctx context.Context, apiKey, endpoint string) (*UsageCharge, error) {
	cost := s.settings.Current().CostPerCall
	var accountID string
	err := s.run(ctx, "charge_usage", func(u *unit) error {
		if !utils.IsAPIKey(apiKey) {
			return domain.ErrUnauthorized
		}
		var acc domain.Account
		if err := u.tx.Where("api_key = ?", apiKey).First(&acc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUnauthorized
			}
			return err
		}
		if !acc.IsActive() {
			return domain.ErrUnauthorized
		}
		accountID = acc.ID
		if cost > 0 {
			if err := u.addBalance(acc.ID, -cost); err != nil {
				return err
			}
			if _, err := u.record(acc.ID, domain.TxUsage, -cost, endpoint, "", nil); err != nil {
				return err
			}
		}
		if err := u.tx.Model(&domain.Account{}).Where("id = ?", acc.ID).
			Update("total_calls", gorm.Expr("total_calls + 1")).Error; err != nil {
			return err
		}
		u.touch(acc.ID)
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"account_id": accountID, "endpoint": endpoint, "error": err.Error()}).Warn("Usage charge refused")
		return nil, err
	}
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &UsageCharge{Account: acc, Cost: cost}, nil
}

func (s *Service) logOperation(op, accountID string, amount int64, txType domain.TransactionType, err error) {
	entry := s.log.WithFields(logrus.Fields{
		"op":         op,
		"account_id": accountID,
		"amount":     amount,
		"type":       txType,
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("Ledger operation failed")
		return
	}
	entry.Info("Ledger operation")
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a listing, 1-based
type Page struct {
	Number int `form:"page" json:"page"`
	Size   int `form:"page_size" json:"page_size"`
}

// Normalize fills defaults and clamps the page size
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// ListTransactions returns one page of the account transactions newest first
func (s *Service) ListTransactions(ctx context.Context, accountID string, page Page) ([]domain.Transaction, error) {
	page = page.Normalize()
	txs := []domain.Transaction{}
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Offset(page.offset()).
		Limit(page.Size).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
