package ledger

import (
	"context"
	"errors"
	"testing"

	"coin_portal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errWriteRefused = errors.New("write refused")

// refuseInserts makes every INSERT into table after the first allowed ones fail. The returned
// func lifts the refusal.
func (f *fixture) refuseInserts(t *testing.T, table string, allowed int) func() {
	t.Helper()
	name := "test:refuse_" + table
	seen := 0
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		seen++
		if seen > allowed {
			_ = tx.AddError(errWriteRefused)
		}
	}))
	lift := func() { _ = f.db.Callback().Create().Remove(name) }
	t.Cleanup(lift)
	return lift
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestFailedCreditLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	user := f.signup(t, "user@example.com")
	published := len(f.changes.forAccount(user.ID))
	f.refuseInserts(t, "transactions", 0)

	_, err := f.svc.Credit(context.Background(), user.ID, 40, domain.TxPurchase, "Coin pack")
	require.ErrorIs(t, err, errWriteRefused)

	acc, err := f.svc.FindAccountByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(160), acc.Balance)
	assert.Equal(t, user.Revision, acc.Revision)
	assert.Len(t, f.transactions(t, user.ID), 1)
	assert.Len(t, f.changes.forAccount(user.ID), published)
}

func TestFailedTransferLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	alice := f.signup(t, "alice@example.com")
	bob := f.signup(t, "bob@example.com")
	published := len(f.changes.forAccount(bob.ID))
	// The sender leg is written, the recipient leg is refused
	f.refuseInserts(t, "transactions", 1)

	_, err := f.svc.Transfer(context.Background(), alice.ID, bob.Email, 70)
	require.ErrorIs(t, err, errWriteRefused)

	assert.Equal(t, int64(160), f.balance(t, alice.ID))
	assert.Equal(t, int64(160), f.balance(t, bob.ID))
	assert.Len(t, f.transactions(t, alice.ID), 1)
	assert.Len(t, f.transactions(t, bob.ID), 1)
	assert.Len(t, f.notifications(t, bob.ID), 1)
	assert.Len(t, f.changes.forAccount(bob.ID), published)
	assert.Equal(t, int64(320), f.totalBalance(t))
}

func TestFailedClaimKeepsRewardClaimable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	adm := f.admin(t)
	user := f.signup(t, "user@example.com")
	n, err := f.svc.Deliver(ctx, adm.ID, user.ID, reward(30))
	require.NoError(t, err)
	lift := f.refuseInserts(t, "transactions", 0)

	_, err = f.svc.Claim(ctx, user.ID, n.ID)
	require.ErrorIs(t, err, errWriteRefused)

	var stored domain.Notification
	require.NoError(t, f.db.First(&stored, "id = ?", n.ID).Error)
	assert.False(t, stored.Claimed)
	assert.False(t, stored.Read)
	assert.Equal(t, int64(160), f.balance(t, user.ID))
	assert.Zero(t, f.count(t, &domain.Transaction{}, "account_id = ? AND type = ?", user.ID, domain.TxAdminCredit))

	lift()
	_, err = f.svc.Claim(ctx, user.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(190), f.balance(t, user.ID))
}

func TestFailedBroadcastBatchWritesNoCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	previous := broadcastBatchSize
	broadcastBatchSize = 2
	t.Cleanup(func() { broadcastBatchSize = previous })

	adm := f.admin(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		f.signup(t, email)
	}
	before := f.count(t, &domain.Notification{}, "1 = 1")
	// The first batch of two lands, the second is refused
	f.refuseInserts(t, "notifications", 1)

	_, err := f.svc.Broadcast(ctx, adm.ID, reward(25))
	require.ErrorIs(t, err, errWriteRefused)

	assert.Equal(t, before, f.count(t, &domain.Notification{}, "1 = 1"))
	assert.Zero(t, f.count(t, &domain.Notification{}, "broadcast_id IS NOT NULL"))
}

func TestFailedSignupCreatesNoAccount(t *testing.T) {
	f := newFixture(t)
	referrer := f.signup(t, "referrer@example.com")
	f.refuseInserts(t, "notifications", 0)

	_, err := f.svc.CreateAccount(context.Background(), NewAccount{
		Email:        "friend@example.com",
		PasswordHash: "hash",
		ReferralCode: referrer.ReferralCode,
	})
	require.ErrorIs(t, err, errWriteRefused)

	assert.Zero(t, f.count(t, &domain.Account{}, "email = ?", "friend@example.com"))
	assert.Zero(t, f.count(t, &domain.Transaction{}, "counterparty = ?", "friend@example.com"))
	assert.Equal(t, int64(160), f.balance(t, referrer.ID))
}
