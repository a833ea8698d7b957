package ledger

import (
	"coin_portal/internal/domain" // Domain models
	"context"                     // Request context
	"errors"                      // Error inspection
	"fmt"                         // Error wrapping
	"strings"                     // Title trimming

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

var broadcastBatchSize = 500 // Rows per INSERT when fanning out a broadcast

// NotificationInput is the payload of a delivered or broadcast notification
type NotificationInput struct {
	Type    domain.NotificationType `json:"type"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Amount  int64                   `json:"amount"` // Coins granted on claim, coin_reward only
}

func (in NotificationInput) validate() error {
	if !in.Type.Valid() {
		return domain.ErrInvalidType
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.ErrInvalidNotification
	}
	if in.Type.Claimable() && in.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

func (in NotificationInput) build(accountID string, broadcastID *string, now int64) domain.Notification {
	n := domain.Notification{
		ID:          newID(),
		AccountID:   accountID,
		BroadcastID: broadcastID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Message:     in.Message,
		CreatedAt:   now,
	}
	if in.Type.Claimable() {
		n.Amount = in.Amount
	}
	return n
}

// Deliver sends a notification to one account. Admin only. Reward payloads are created
// unclaimed and never touch the balance until claimed.
func (s *Service) Deliver(ctx context.Context, actorID, accountID string, in NotificationInput) (*domain.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var n *domain.Notification
	err := s.run(ctx, "deliver", func(u *unit) error {
		if _, err := u.requireAdmin(actorID); err != nil {
			return err
		}
		if _, err := u.loadAccount(accountID); err != nil {
			return err
		}
		var err error
		n, err = u.notify(accountID, in, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"actor_id":        actorID,
		"account_id":      accountID,
		"notification_id": n.ID,
		"type":            n.Type,
		"amount":          n.Amount,
	}).Info("Notification delivered")
	return n, nil
}

// loadNotification reads a notification owned by accountID inside the unit
func (u *unit) loadNotification(accountID, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := u.tx.Where("id = ? AND account_id = ?", id, accountID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

// MarkRead flags a notification as read. Marking a read notification again changes nothing.
func (s *Service) MarkRead(ctx context.Context, accountID, notificationID string) (*domain.Notification, error) {
	var n *domain.Notification
	err := s.run(ctx, "mark_read", func(u *unit) error {
		if _, err := u.requireActive(accountID); err != nil {
			return err
		}
		res := u.tx.Model(&domain.Notification{}).
			Where("id = ? AND account_id = ? AND `read` = ?", notificationID, accountID, false).
			Update("read", true)
		if res.Error != nil {
			return res.Error
		}
		var err error
		if n, err = u.loadNotification(accountID, notificationID); err != nil {
			return err
		}
		if res.RowsAffected == 1 {
			c := u.touch(accountID)
			c.Notifications = append(c.Notifications, *n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// MarkAllRead flags every unread notification of the account as read and returns how many changed
func (s *Service) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	var marked int64
	err := s.run(ctx, "mark_all_read", func(u *unit) error {
		if _, err := u.requireActive(accountID); err != nil {
			return err
		}
		var ids []string
		if err := u.tx.Model(&domain.Notification{}).
			Where("account_id = ? AND `read` = ?", accountID, false).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := u.tx.Model(&domain.Notification{}).Where("id IN ?", ids).Update("read", true)
		if res.Error != nil {
			return res.Error
		}
		marked = res.RowsAffected
		var updated []domain.Notification
		if err := u.tx.Where("id IN ?", ids).Order("created_at DESC, id DESC").Find(&updated).Error; err != nil {
			return err
		}
		c := u.touch(accountID)
		c.Notifications = append(c.Notifications, updated...)
		return nil
	})
	return marked, err
}

// Claim converts a pending coin_reward notification into an admin_credit transaction. The
// claimed flag is flipped by a conditional update in the same database transaction as the
// credit, so concurrent claims of one notification credit it exactly once.
func (s *Service) Claim(ctx context.Context, accountID, notificationID string) (*domain.Notification, error) {
	var claimed *domain.Notification
	err := s.run(ctx, "claim", func(u *unit) error {
		if _, err := u.requireActive(accountID); err != nil {
			return err
		}
		res := u.tx.Model(&domain.Notification{}).
			Where("id = ? AND account_id = ? AND type = ? AND claimed = ?", notificationID, accountID, domain.NotifyCoinReward, false).
			Updates(map[string]any{"claimed": true, "read": true})
		if res.Error != nil {
			return res.Error
		}
		n, err := u.loadNotification(accountID, notificationID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 { // Someone else claimed it, or it is not a reward
			if !n.Type.Claimable() {
				return domain.ErrNotARewardNotification
			}
			return domain.ErrAlreadyClaimed
		}

		if err := u.addBalance(accountID, n.Amount); err != nil {
			return err
		}
		if _, err := u.record(accountID, domain.TxAdminCredit, n.Amount, "Claimed reward: "+n.Title, "", &n.ID); err != nil {
			return err
		}
		c := u.touch(accountID)
		c.Notifications = append(c.Notifications, *n)
		claimed = n
		return nil
	})
	s.metrics.ObserveClaim(err)
	entry := s.log.WithFields(logrus.Fields{"account_id": accountID, "notification_id": notificationID})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("Claim rejected")
		return nil, err
	}
	entry.WithField("amount", claimed.Amount).Info("Reward claimed")
	return claimed, nil
}

// DeleteNotification removes a notification owned by accountID. Deleting an unclaimed reward
// cancels it without touching the balance.
func (s *Service) DeleteNotification(ctx context.Context, accountID, notificationID string) error {
	var cancelled *domain.Notification
	err := s.run(ctx, "delete_notification", func(u *unit) error {
		if _, err := u.requireActive(accountID); err != nil {
			return err
		}
		n, err := u.loadNotification(accountID, notificationID)
		if err != nil {
			return err
		}
		if err := u.tx.Delete(&domain.Notification{}, "id = ?", n.ID).Error; err != nil {
			return fmt.Errorf("delete notification: %w", err)
		}
		if n.Pending() {
			cancelled = n // Logged after commit
		}
		c := u.touch(accountID)
		c.DeletedNotificationIDs = append(c.DeletedNotificationIDs, n.ID)
		return nil
	})
	if err != nil {
		return err
	}
	if cancelled != nil {
		s.log.WithFields(logrus.Fields{
			"account_id":      accountID,
			"notification_id": cancelled.ID,
			"amount":          cancelled.Amount,
		}).Warn("Unclaimed reward deleted")
	}
	return nil
}

// BroadcastResult describes a committed broadcast
type BroadcastResult struct {
	BroadcastID string `json:"broadcast_id"`
	Recipients  int    `json:"recipients"`
}

// Broadcast fans a notification out to every account existing when it runs. All copies share
// a broadcast id and commit together or not at all. Admin only.
func (s *Service) Broadcast(ctx context.Context, actorID string, in NotificationInput) (*BroadcastResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	broadcastID := newID() // Shared by every copy
	var recipients int
	err := s.run(ctx, "broadcast", func(u *unit) error {
		if _, err := u.requireAdmin(actorID); err != nil {
			return err
		}
		var ids []string
		if err := u.tx.Model(&domain.Account{}).Order("id").Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("snapshot accounts: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		batch := make([]domain.Notification, 0, len(ids))
		for _, id := range ids {
			batch = append(batch, in.build(id, &broadcastID, u.now))
		}
		if err := u.tx.CreateInBatches(&batch, broadcastBatchSize).Error; err != nil {
			return fmt.Errorf("create broadcast: %w", err)
		}
		for _, n := range batch {
			c := u.touch(n.AccountID)
			c.Notifications = append(c.Notifications, n)
		}
		recipients = len(batch) // Snapshot size
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveBroadcast(recipients)
	s.log.WithFields(logrus.Fields{
		"actor_id":     actorID,
		"broadcast_id": broadcastID,
		"type":         in.Type,
		"amount":       in.Amount,
		"recipients":   recipients,
	}).Info("Notification broadcast")
	return &BroadcastResult{BroadcastID: broadcastID, Recipients: recipients}, nil
}

// ListNotifications returns the account notifications newest first
func (s *Service) ListNotifications(ctx context.Context, accountID string, onlyUnread bool) ([]domain.Notification, error) {
	q := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if onlyUnread {
		q = q.Where("`read` = ?", false)
	}
	notifications := []domain.Notification{}
	if err := q.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// UnreadCount counts the unread notifications of the account
func (s *Service) UnreadCount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("account_id = ? AND `read` = ?", accountID, false).
		Count(&count).Error
	return count, err
}
