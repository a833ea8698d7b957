package ledger

import (
	"context"
	"testing"

	"coin_portal/internal/domain"
	"coin_portal/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// squatBeforeInsert writes a conflicting account row right before the next account INSERT, as a
// concurrent signup committing between the checks and the insert would. conflict derives the
// squatter from the pending account; only the first insert is raced.
func (f *fixture) squatBeforeInsert(t *testing.T, conflict func(pending *domain.Account) (email, code string)) {
	t.Helper()
	name := "test:squat_account"
	done := false
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		pending, ok := tx.Statement.Dest.(*domain.Account)
		if !ok || done {
			return
		}
		done = true
		email, code := conflict(pending)
		key, err := utils.NewAPIKey()
		require.NoError(t, err)
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO accounts (id, email, password, role, api_key, referral_code, balance, status, total_calls, revision, created_at) VALUES (?, ?, ?, ?, ?, ?, 0, ?, 0, 0, CURRENT_TIMESTAMP)",
			uuid.NewString(), email, "hash", domain.RoleUser, key, code, domain.StatusActive,
		).Error)
	}))
	t.Cleanup(func() { _ = f.db.Callback().Create().Remove(name) })
}

func TestConcurrentDuplicateSignupIsEmailTaken(t *testing.T) {
	f := newFixture(t)
	f.squatBeforeInsert(t, func(*domain.Account) (string, string) {
		return "race@example.com", "SQUAT001"
	})

	_, err := f.svc.CreateAccount(context.Background(), NewAccount{Email: "race@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestReferralCodeCollisionIsRetried(t *testing.T) {
	f := newFixture(t)
	var taken string
	f.squatBeforeInsert(t, func(pending *domain.Account) (string, string) {
		taken = pending.ReferralCode
		return "squatter@example.com", pending.ReferralCode
	})

	acc, err := f.svc.CreateAccount(context.Background(), NewAccount{Email: "lucky@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEqual(t, taken, acc.ReferralCode)
	assert.Len(t, acc.ReferralCode, 8)
	assert.Equal(t, int64(160), acc.Balance)
}
