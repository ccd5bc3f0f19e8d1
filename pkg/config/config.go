package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Migrations MigrationsConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Rollbar    RollbarConfig
	Coverage   CoverageConfig
	Earnings   EarningsConfig
	Offers     OffersConfig
	Notify     NotifyConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// MigrationsConfig controls schema migration at boot.
type MigrationsConfig struct {
	AutoApply bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify identity provider tokens.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RollbarConfig enables error reporting for panics and 5xx responses.
type RollbarConfig struct {
	Token   string
	Version string
}

// CoverageConfig tunes the coverage lifecycle rules.
type CoverageConfig struct {
	AdvanceNotice       time.Duration
	DefaultRate         decimal.Decimal
	Timezone            string
	RequireConfirmation bool
}

// EarningsConfig governs caching of earnings summaries.
type EarningsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// OffersConfig sizes the offer notification worker pool.
type OffersConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// NotifyConfig configures outbound notification channels. Empty credentials disable a channel.
type NotifyConfig struct {
	TelegramToken    string
	SendgridAPIKey   string
	FromEmail        string
	FromName         string
	SubjectPrefix    string
	PublicAppBaseURL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		ConnMaxIdleTime: parseDuration(v.GetString("DB_CONN_MAX_IDLE_TIME"), 30*time.Minute),
		ConnectTimeout:  parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 10*time.Second),
	}

	cfg.Migrations = MigrationsConfig{AutoApply: v.GetBool("DB_AUTO_MIGRATE")}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Rollbar = RollbarConfig{
		Token:   v.GetString("ROLLBAR_TOKEN"),
		Version: v.GetString("BUILD_VERSION"),
	}

	cfg.Coverage = CoverageConfig{
		AdvanceNotice:       parseDuration(v.GetString("COVERAGE_ADVANCE_NOTICE"), 24*time.Hour),
		DefaultRate:         parseDecimal(v.GetString("COVERAGE_DEFAULT_RATE"), decimal.NewFromInt(25)),
		Timezone:            v.GetString("COVERAGE_TIMEZONE"),
		RequireConfirmation: v.GetBool("COVERAGE_REQUIRE_CONFIRMATION"),
	}

	cfg.Earnings = EarningsConfig{
		CacheEnabled: v.GetBool("ENABLE_EARNINGS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("EARNINGS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Offers = OffersConfig{
		WorkerConcurrency: v.GetInt("OFFERS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("OFFERS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("OFFERS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Notify = NotifyConfig{
		TelegramToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
		SendgridAPIKey:   v.GetString("SENDGRID_API_KEY"),
		FromEmail:        v.GetString("NOTIFY_FROM_EMAIL"),
		FromName:         v.GetString("NOTIFY_FROM_NAME"),
		SubjectPrefix:    v.GetString("NOTIFY_SUBJECT_PREFIX"),
		PublicAppBaseURL: v.GetString("PUBLIC_APP_BASE_URL"),
	}

	return cfg, nil
}

// Location resolves the configured coverage timezone, falling back to UTC.
func (c CoverageConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coverage")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("BUILD_VERSION", "dev")

	v.SetDefault("COVERAGE_ADVANCE_NOTICE", "24h")
	v.SetDefault("COVERAGE_DEFAULT_RATE", "25")
	v.SetDefault("COVERAGE_TIMEZONE", "UTC")
	v.SetDefault("COVERAGE_REQUIRE_CONFIRMATION", false)

	v.SetDefault("ENABLE_EARNINGS_CACHE", false)
	v.SetDefault("EARNINGS_CACHE_TTL", "5m")

	v.SetDefault("OFFERS_WORKER_CONCURRENCY", 2)
	v.SetDefault("OFFERS_WORKER_RETRIES", 3)
	v.SetDefault("OFFERS_RETRY_DELAY", "5s")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("NOTIFY_FROM_EMAIL", "coverage@localhost")
	v.SetDefault("NOTIFY_FROM_NAME", "Coverage Desk")
	v.SetDefault("NOTIFY_SUBJECT_PREFIX", "[Coverage] ")
	v.SetDefault("PUBLIC_APP_BASE_URL", "http://localhost:3000")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseDecimal(raw string, fallback decimal.Decimal) decimal.Decimal {
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
