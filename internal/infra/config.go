package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv          string
	Port            string
	DatabaseURL     string
	AuthTokenSecret string
	GeoIPDBPath     string

	ProviderBaseURL     string
	ProviderAPIKey      string
	WebhookSharedSecret string

	StalenessThreshold time.Duration
	SweepInterval      time.Duration
	SweepMaxAge        time.Duration
	SweepBatchSize     int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AuthTokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
		GeoIPDBPath:     os.Getenv("GEOIP_DB_PATH"),

		ProviderBaseURL:     getEnv("PROVIDER_BASE_URL", "https://api.avatarvideo.example.com/v1"),
		ProviderAPIKey:      os.Getenv("PROVIDER_API_KEY"),
		WebhookSharedSecret: os.Getenv("WEBHOOK_SHARED_SECRET"),

		StalenessThreshold: time.Second * time.Duration(getEnvInt("STALENESS_THRESHOLD_SECONDS", 120)),
		SweepInterval:      time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)),
		SweepMaxAge:        time.Second * time.Duration(getEnvInt("SWEEP_MAX_AGE_SECONDS", 3600)),
		SweepBatchSize:     getEnvInt("SWEEP_BATCH_SIZE", 100),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AuthTokenSecret == "" {
		return nil, fmt.Errorf("AUTH_TOKEN_SECRET is required")
	}

	// The webhook endpoint is always mounted, so an unset secret would mean
	// accepting unsigned callbacks. Refuse to start instead.
	if cfg.WebhookSharedSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SHARED_SECRET is required")
	}

	if cfg.StalenessThreshold <= 0 {
		return nil, fmt.Errorf("STALENESS_THRESHOLD_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
