package config

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
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

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Enrollment     EnrollmentConfig
	Catalog        CatalogConfig
	Reconciliation ReconciliationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrollmentConfig tunes the enroll/drop critical section.
type EnrollmentConfig struct {
	Timezone             string
	TxTimeout            time.Duration
	ConflictRetries      int
	RateLimitPerMinute   int
	DefaultCreditCeiling int
}

// Location resolves the configured timezone, falling back to UTC.
func (c EnrollmentConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CatalogConfig governs caching of read-mostly catalog snapshots.
type CatalogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ReconciliationConfig configures the counter reconciliation worker pool.
type ReconciliationConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	retries := v.GetInt("ENROLLMENT_CONFLICT_RETRIES")
	if retries < 0 {
		retries = 0
	}
	cfg.Enrollment = EnrollmentConfig{
		Timezone:             v.GetString("ENROLLMENT_TIMEZONE"),
		TxTimeout:            parseDuration(v.GetString("ENROLLMENT_TX_TIMEOUT"), 5*time.Second),
		ConflictRetries:      retries,
		RateLimitPerMinute:   v.GetInt("ENROLLMENT_RATE_LIMIT_PER_MINUTE"),
		DefaultCreditCeiling: v.GetInt("ENROLLMENT_DEFAULT_CREDIT_CEILING"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled: v.GetBool("ENABLE_CATALOG_CACHE"),
		CacheTTL:     parseDuration(v.GetString("CATALOG_CACHE_TTL"), time.Minute),
	}

	cfg.Reconciliation = ReconciliationConfig{
		Enabled:    v.GetBool("ENABLE_RECONCILIATION"),
		Workers:    v.GetInt("RECONCILIATION_WORKERS"),
		MaxRetries: v.GetInt("RECONCILIATION_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RECONCILIATION_RETRY_DELAY"), 2*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_enrollment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROLLMENT_TIMEZONE", "UTC")
	v.SetDefault("ENROLLMENT_TX_TIMEOUT", "5s")
	v.SetDefault("ENROLLMENT_CONFLICT_RETRIES", 1)
	v.SetDefault("ENROLLMENT_RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("ENROLLMENT_DEFAULT_CREDIT_CEILING", 24)

	v.SetDefault("ENABLE_CATALOG_CACHE", false)
	v.SetDefault("CATALOG_CACHE_TTL", "1m")

	v.SetDefault("ENABLE_RECONCILIATION", true)
	v.SetDefault("RECONCILIATION_WORKERS", 1)
	v.SetDefault("RECONCILIATION_MAX_RETRIES", 3)
	v.SetDefault("RECONCILIATION_RETRY_DELAY", "2s")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
