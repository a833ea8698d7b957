package config

import (
	"fmt"     // For DSN formatting
	"strings" // For env key normalization

	"github.com/joho/godotenv" // For loading .env files
	"github.com/spf13/viper"   // For typed environment lookups with defaults
)

// Config holds the application configuration
type Config struct {
	AppPort         string // Application port
	DBDriver        string // Database driver: mysql or sqlite
	DBUser          string // Database user
	DBPassword      string // Database password
	DBHost          string // Database host
	DBPort          string // Database port
	DBName          string // Database name
	SQLitePath      string // SQLite file used when DBDriver is sqlite
	JWTSecret       string // JWT secret key
	RedisAddr       string // Redis server address, empty disables caching and the stream relay
	RedisPass       string // Redis password
	RedisDB         int    // Redis database number
	AMQPURL         string // RabbitMQ URL, empty disables ledger event publishing
	LedgerExchange  string // Exchange ledger events are published to
	IsProd          bool   // Is production environment
	LogLevel        string // logrus level name
	SignupBonus     int64  // Seed value for the welcome bonus setting
	ReferralBonus   int64  // Seed value for the referral bonus setting
	CostPerCall     int64  // Seed value for the cost-per-call setting
	SettingsRefresh string // Cron schedule for reloading settings written by other instances
	AdminEmail      string // Account promoted to admin by the migrate command
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("SQLITE_PATH", "coin_portal.db")
	v.SetDefault("LEDGER_EXCHANGE", "coin_portal.ledger")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SIGNUP_BONUS", 160)
	v.SetDefault("REFERRAL_BONUS", 50)
	v.SetDefault("COST_PER_CALL", 1)
	v.SetDefault("SETTINGS_REFRESH", "@every 1m")

	return &Config{
		AppPort:         v.GetString("APP_PORT"),
		DBDriver:        strings.ToLower(v.GetString("DB_DRIVER")),
		DBUser:          v.GetString("DB_USER"),
		DBPassword:      v.GetString("DB_PASSWORD"),
		DBHost:          v.GetString("DB_HOST"),
		DBPort:          v.GetString("DB_PORT"),
		DBName:          v.GetString("DB_NAME"),
		SQLitePath:      v.GetString("SQLITE_PATH"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPass:       v.GetString("REDIS_PASS"),
		RedisDB:         v.GetInt("REDIS_DB"),
		AMQPURL:         v.GetString("AMQP_URL"),
		LedgerExchange:  v.GetString("LEDGER_EXCHANGE"),
		IsProd:          v.GetBool("IS_PROD"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		SignupBonus:     v.GetInt64("SIGNUP_BONUS"),
		ReferralBonus:   v.GetInt64("REFERRAL_BONUS"),
		CostPerCall:     v.GetInt64("COST_PER_CALL"),
		SettingsRefresh: v.GetString("SETTINGS_REFRESH"),
		AdminEmail:      strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
	}
}

// MySQLDSN builds the Data Source Name for the MySQL driver
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
