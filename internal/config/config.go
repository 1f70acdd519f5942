package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	JWT     JWTConfig
	Cron    CronConfig
	Cache   CacheConfig
	Storage StorageConfig
	Billing BillingPolicy
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type JWTConfig struct {
	SecretKey  string
	CookieName string
}

// CronConfig drives the in-process bill generation job and the external trigger endpoint.
type CronConfig struct {
	Enabled   bool
	Schedule  string
	SecretKey string
	Timeout   time.Duration
}

type CacheConfig struct {
	TTL      time.Duration
	RecapTTL time.Duration
}

// StorageConfig is optional; an empty bucket disables uploads.
type StorageConfig struct {
	ProjectID string
	Bucket    string
}

var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.allowed_origins": "CORS_ALLOWED_ORIGINS",
	"database.url":           "DATABASE_URL",
	"database.host":          "DATABASE_HOST",
	"database.port":          "DATABASE_PORT",
	"database.user":          "DATABASE_USER",
	"database.password":      "DATABASE_PASSWORD",
	"database.name":          "DATABASE_NAME",
	"database.ssl_mode":      "DATABASE_SSL_MODE",
	"redis.url":              "REDIS_URL",
	"redis.host":             "REDIS_HOST",
	"redis.port":             "REDIS_PORT",
	"redis.password":         "REDIS_PASSWORD",
	"redis.db":               "REDIS_DB",
	"jwt.secret_key":         "JWT_SECRET_KEY",
	"jwt.cookie_name":        "JWT_COOKIE_NAME",
	"cron.enabled":           "ENABLE_SCHEDULER",
	"cron.schedule":          "BILL_GENERATION_SCHEDULE",
	"cron.secret_key":        "CRON_SECRET_KEY",
	"cron.timeout":           "CRON_TIMEOUT",
	"cache.ttl":              "CACHE_TTL",
	"cache.recap_ttl":        "CACHE_RECAP_TTL",
	"storage.project_id":     "GCP_PROJECT_ID",
	"storage.bucket":         "GCP_BUCKET_NAME",
	"billing.rates":          "KAS_KELAS_RATES",
	"billing.biaya_admin":    "BIAYA_ADMIN",
	"billing.excluded":       "BILL_EXCLUDED_MONTHS",
	"billing.due_day":        "BILL_DUE_DAY",
	"billing.timezone":       "BILL_TIMEZONE",
}

// Init points viper at .env and the process environment. Missing .env is not an error.
func Init(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		slog.Info("config file not found, using environment and defaults", "path", path, "error", err)
	}
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", "http://localhost:3000")
	viper.SetDefault("jwt.cookie_name", "accessToken")
	viper.SetDefault("cron.enabled", true)
	viper.SetDefault("cron.schedule", "0 0 1 * *")
	viper.SetDefault("cron.timeout", 5*time.Minute)
	viper.SetDefault("cache.ttl", 5*time.Minute)
	viper.SetDefault("cache.recap_ttl", 10*time.Minute)
	viper.SetDefault("billing.rates", DefaultRates)
	viper.SetDefault("billing.biaya_admin", 0)
	viper.SetDefault("billing.excluded", "1,2,7,8")
	viper.SetDefault("billing.due_day", 1)
	viper.SetDefault("billing.timezone", "Asia/Jakarta")
}

// Load reads the application config. Call Init first.
func Load() (*Config, error) {
	billing, err := LoadBillingPolicy(
		viper.GetString("billing.rates"),
		viper.GetInt64("billing.biaya_admin"),
		viper.GetString("billing.excluded"),
		viper.GetInt("billing.due_day"),
		viper.GetString("billing.timezone"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing policy: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			AllowedOrigins: splitList(viper.GetString("server.allowed_origins")),
		},
		JWT: JWTConfig{
			SecretKey:  viper.GetString("jwt.secret_key"),
			CookieName: viper.GetString("jwt.cookie_name"),
		},
		Cron: CronConfig{
			Enabled:   viper.GetBool("cron.enabled"),
			Schedule:  viper.GetString("cron.schedule"),
			SecretKey: viper.GetString("cron.secret_key"),
			Timeout:   viper.GetDuration("cron.timeout"),
		},
		Cache: CacheConfig{
			TTL:      viper.GetDuration("cache.ttl"),
			RecapTTL: viper.GetDuration("cache.recap_ttl"),
		},
		Storage: StorageConfig{
			ProjectID: viper.GetString("storage.project_id"),
			Bucket:    viper.GetString("storage.bucket"),
		},
		Billing: billing,
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	return cfg, nil
}
