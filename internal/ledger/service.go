// Package ledger owns every balance mutation of the portal: the account store, the ledger
// operations, the notification/claim engine and the admin control surface. Each exported
// mutation runs as one database transaction that writes the balance delta, its transaction
// record and any notification together, then publishes the committed change.
package ledger

import (
	"coin_portal/internal/domain"  // Domain models
	"coin_portal/internal/events"  // Ledger event publishing
	"coin_portal/internal/metrics" // Prometheus counters
	"coin_portal/internal/stream"  // Change fan-out
	"coin_portal/internal/utils"   // Redis cache
	"context"                      // Request context
	"errors"                       // Error inspection
	"fmt"                          // Error wrapping
	"sort"                         // Deterministic lock order
	"time"                         // Unit timestamps

	"github.com/oklog/ulid/v2"   // Time ordered ids
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

const (
	accountCacheKeyPrefix = "account:"
	statsCacheKey         = "admin:stats"
	revisionBatchSize     = 500
)

// Deps are the collaborators of the ledger service. Only DB and Settings are required.
type Deps struct {
	DB       *gorm.DB
	Settings *Settings
	Stream   stream.Publisher
	Events   events.Publisher
	Cache    *utils.Cache
	Metrics  *metrics.LedgerMetrics
	Log      *logrus.Entry
}

// Service implements the ledger core
type Service struct {
	db       *gorm.DB
	settings *Settings
	stream   stream.Publisher
	events   events.Publisher
	cache    *utils.Cache
	metrics  *metrics.LedgerMetrics
	log      *logrus.Entry
}

// New creates the ledger service
func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ev := d.Events
	if ev == nil {
		ev = events.NoopPublisher{}
	}
	return &Service{
		db:       d.DB,
		settings: d.Settings,
		stream:   d.Stream,
		events:   ev,
		cache:    d.Cache,
		metrics:  d.Metrics,
		log:      log.WithField("component", "ledger"),
	}
}

// Settings returns the live settings object
func (s *Service) Settings() *Settings {
	return s.settings
}

// unit collects what one database transaction changed so it can be published after commit
type unit struct {
	tx      *gorm.DB
	now     int64
	changes map[string]*stream.Change
	deleted map[string]bool
	txs     []domain.Transaction
}

func (u *unit) touch(accountID string) *stream.Change {
	c, ok := u.changes[accountID]
	if !ok {
		c = &stream.Change{AccountID: accountID}
		u.changes[accountID] = c
	}
	return c
}

// run executes fn inside a database transaction and publishes the result once committed
func (s *Service) run(ctx context.Context, op string, fn func(u *unit) error) error {
	u := &unit{
		now:     time.Now().UnixMilli(),
		changes: make(map[string]*stream.Change),
		deleted: make(map[string]bool),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u.tx = tx // Every read and write of the unit goes through tx
		if err := fn(u); err != nil {
			return err
		}
		return u.bumpRevisions()
	})
	s.metrics.ObserveOperation(op, err) // Count the outcome, committed or not
	if err != nil {
		return err
	}
	s.afterCommit(ctx, u) // Publish only what was committed
	return nil
}

// bumpRevisions advances the revision of every touched account and snapshots it into the change
func (u *unit) bumpRevisions() error {
	ids := make([]string, 0, len(u.changes))
	for id := range u.changes {
		if !u.deleted[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids) // Consistent lock order across concurrent units
	for start := 0; start < len(ids); start += revisionBatchSize {
		end := min(start+revisionBatchSize, len(ids))
		batch := ids[start:end]
		if err := u.tx.Model(&domain.Account{}).Where("id IN ?", batch).
			Update("revision", gorm.Expr("revision + 1")).Error; err != nil {
			return fmt.Errorf("bump revisions: %w", err)
		}
		var accounts []domain.Account
		if err := u.tx.Where("id IN ?", batch).Find(&accounts).Error; err != nil {
			return fmt.Errorf("load touched accounts: %w", err)
		}
		for i := range accounts {
			c := u.changes[accounts[i].ID]
			c.Account = &accounts[i]
			c.Revision = accounts[i].Revision
		}
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, u *unit) {
	ctx = context.WithoutCancel(ctx) // Publishing outlives a cancelled request

	s.refreshAccountCache(ctx, u)
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.log.WithError(err).Warn("Cache invalidation failed")
	}

	if s.stream != nil {
		ids := make([]string, 0, len(u.changes))
		for id := range u.changes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			s.stream.Publish(ctx, *u.changes[id])
		}
	}

	for _, t := range u.txs {
		if err := s.events.PublishTransaction(ctx, events.NewTransactionEvent(t)); err != nil {
			s.log.WithFields(logrus.Fields{
				"transaction_id": t.ID,
				"type":           t.Type,
				"error":          err.Error(),
			}).Warn("Ledger event publish failed")
		}
	}
}

// refreshAccountCache writes the committed snapshot of every touched account, or a tombstone
// for deleted ones. Entries are revision guarded, so concurrent commits settle on the newest.
func (s *Service) refreshAccountCache(ctx context.Context, u *unit) {
	for id, c := range u.changes {
		key := accountCacheKeyPrefix + id
		var err error
		switch {
		case c.Deleted:
			_, err = s.cache.SetVersioned(ctx, key, c.Revision, nil)
		case c.Account != nil:
			_, err = s.cache.SetVersioned(ctx, key, c.Revision, c.Account)
		default:
			err = s.cache.Delete(ctx, key)
		}
		if err != nil {
			s.log.WithFields(logrus.Fields{"account_id": id, "error": err.Error()}).Warn("Account cache refresh failed")
		}
	}
}

// newID returns a time ordered identifier for transactions and notifications
func newID() string {
	return ulid.Make().String()
}

// loadAccount reads an account inside the unit
func (u *unit) loadAccount(id string) (*domain.Account, error) {
	var acc domain.Account
	if err := u.tx.First(&acc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// requireActive rejects user-facing mutations from missing or suspended accounts
func (u *unit) requireActive(id string) (*domain.Account, error) {
	acc, err := u.loadAccount(id)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, domain.ErrUnauthorized
	}
	return acc, nil
}

// requireAdmin rejects admin-only operations from anyone but an active admin
func (u *unit) requireAdmin(actorID string) (*domain.Account, error) {
	acc, err := u.loadAccount(actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !acc.IsAdmin() || !acc.IsActive() {
		return nil, domain.ErrUnauthorized
	}
	return acc, nil
}

// addBalance applies delta to the account balance. Negative deltas only apply when the balance
// covers them, so the balance can never drop below zero.
func (u *unit) addBalance(accountID string, delta int64) error {
	q := u.tx.Model(&domain.Account{}).Where("id = ?", accountID)
	if delta < 0 {
		q = q.Where("balance >= ?", -delta) // Conditional debit
	}
	res := q.Update("balance", gorm.Expr("balance + ?", delta)) // Atomic in-place update
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		u.touch(accountID)
		return nil
	}
	if _, err := u.loadAccount(accountID); err != nil {
		return err
	}
	return domain.ErrInsufficientBalance // Row exists, so the condition failed
}

// record appends a transaction to the log
func (u *unit) record(accountID string, txType domain.TransactionType, amount int64, description, counterparty string, notificationID *string) (*domain.Transaction, error) {
	t := domain.Transaction{
		ID:             newID(),
		AccountID:      accountID,
		Type:           txType,
		Amount:         amount,
		Description:    description,
		Counterparty:   counterparty,
		NotificationID: notificationID,
		CreatedAt:      u.now,
	}
	if err := u.tx.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("record %s transaction: %w", txType, err)
	}
	c := u.touch(accountID)
	c.Transactions = append(c.Transactions, t)
	u.txs = append(u.txs, t)
	return &t, nil
}

// notify writes a notification for accountID
func (u *unit) notify(accountID string, in NotificationInput, broadcastID *string) (*domain.Notification, error) {
	n := in.build(accountID, broadcastID, u.now)
	if err := u.tx.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	c := u.touch(accountID)
	c.Notifications = append(c.Notifications, n)
	return &n, nil
}
