package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SIGNUP_BONUS", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("APP_PORT", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, int64(160), cfg.SignupBonus)
	assert.Equal(t, int64(50), cfg.ReferralBonus)
	assert.Equal(t, int64(1), cfg.CostPerCall)
	assert.Equal(t, "@every 1m", cfg.SettingsRefresh)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SIGNUP_BONUS", "200")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IS_PROD", "true")
	t.Setenv("ADMIN_EMAIL", "  Root@Example.com ")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, int64(200), cfg.SignupBonus)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, "root@example.com", cfg.AdminEmail)
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "3306", DBName: "coins"}
	assert.Equal(t, "u:p@tcp(db:3306)/coins?parseTime=true", cfg.MySQLDSN())
}
