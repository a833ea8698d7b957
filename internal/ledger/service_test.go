package ledger

import (
	"context"
	"sync"
	"testing"

	"coin_portal/internal/db"
	"coin_portal/internal/domain"
	"coin_portal/internal/metrics"
	"coin_portal/internal/stream"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recorder captures published changes
type recorder struct {
	mu      sync.Mutex
	changes []stream.Change
}

func (r *recorder) Publish(_ context.Context, c stream.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) forAccount(id string) []stream.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stream.Change
	for _, c := range r.changes {
		if c.AccountID == id {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	changes  *recorder
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb, db.SettingsSeed{CostPerCall: 1, ReferralBonus: 50, WelcomeBonus: 160}))
	settings, err := LoadSettings(context.Background(), gdb)
	require.NoError(t, err)

	f := &fixture{db: gdb, changes: &recorder{}, registry: prometheus.NewRegistry()}
	f.svc = New(Deps{
		DB:       gdb,
		Settings: settings,
		Stream:   f.changes,
		Metrics:  metrics.NewLedgerMetrics(f.registry),
	})
	return f
}

func (f *fixture) signup(t *testing.T, email string) *domain.Account {
	t.Helper()
	acc, err := f.svc.CreateAccount(context.Background(), NewAccount{Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	return acc
}

func (f *fixture) admin(t *testing.T) *domain.Account {
	t.Helper()
	acc := f.signup(t, "admin@example.com")
	require.NoError(t, db.PromoteAdmin(f.db, acc.Email))
	acc.Role = domain.RoleAdmin
	return acc
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	var acc domain.Account
	require.NoError(t, f.db.First(&acc, "id = ?", id).Error)
	return acc.Balance
}

func (f *fixture) transactions(t *testing.T, id string) []domain.Transaction {
	t.Helper()
	var txs []domain.Transaction
	require.NoError(t, f.db.Where("account_id = ?", id).Order("created_at, id").Find(&txs).Error)
	return txs
}

func (f *fixture) notifications(t *testing.T, id string) []domain.Notification {
	t.Helper()
	var ns []domain.Notification
	require.NoError(t, f.db.Where("account_id = ?", id).Order("created_at, id").Find(&ns).Error)
	return ns
}

func (f *fixture) totalBalance(t *testing.T) int64 {
	t.Helper()
	var total int64
	require.NoError(t, f.db.Model(&domain.Account{}).Select("COALESCE(SUM(balance), 0)").Scan(&total).Error)
	return total
}
