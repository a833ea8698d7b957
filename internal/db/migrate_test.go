package db

import (
	"errors"
	"testing"

	"coin_portal/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestMigrateSeedsSettingsOnce(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db, SettingsSeed{CostPerCall: 2, ReferralBonus: 10, WelcomeBonus: 160}))

	var row domain.Settings
	require.NoError(t, db.First(&row, domain.SettingsRowID).Error)
	assert.Equal(t, int64(160), row.WelcomeBonus)

	require.NoError(t, db.Model(&row).Update("welcome_bonus", 300).Error)
	require.NoError(t, Migrate(db, SettingsSeed{CostPerCall: 2, ReferralBonus: 10, WelcomeBonus: 160}))

	require.NoError(t, db.First(&row, domain.SettingsRowID).Error)
	assert.Equal(t, int64(300), row.WelcomeBonus, "re-running migrate must keep admin edits")
}

func TestPromoteAdmin(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db, SettingsSeed{}))

	require.NoError(t, db.Create(&domain.Account{
		ID: "a1", Email: "root@example.com", Password: "x", Role: domain.RoleUser,
		APIKey: "cak_1", ReferralCode: "R1", Status: domain.StatusActive,
	}).Error)

	require.NoError(t, PromoteAdmin(db, "root@example.com"))
	var acc domain.Account
	require.NoError(t, db.First(&acc, "id = ?", "a1").Error)
	assert.Equal(t, domain.RoleAdmin, acc.Role)

	assert.ErrorIs(t, PromoteAdmin(db, "nobody@example.com"), domain.ErrNotFound)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry 'a@b.c' for key 'accounts.idx_accounts_email'")))
	assert.True(t, IsDuplicateOn(errors.New("constraint failed: UNIQUE constraint failed: accounts.referral_code (2067)"), "referral_code"))
	assert.False(t, IsDuplicateOn(errors.New("constraint failed: UNIQUE constraint failed: accounts.email (2067)"), "referral_code"))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
	assert.False(t, IsDuplicateKeyErr(nil))
}
