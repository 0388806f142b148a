package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("AUTH_TOKEN_SECRET", "test-secret")
	t.Setenv("PROVIDER_API_KEY", "pk-test")
	t.Setenv("WEBHOOK_SHARED_SECRET", "whsec-test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("STALENESS_THRESHOLD_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.StalenessThreshold != 120*time.Second {
		t.Fatalf("StalenessThreshold mismatch: got %v want %v", cfg.StalenessThreshold, 120*time.Second)
	}
	if cfg.SweepMaxAge != time.Hour {
		t.Fatalf("SweepMaxAge mismatch: got %v want %v", cfg.SweepMaxAge, time.Hour)
	}
}

func TestLoadConfigRequiresWebhookSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_SHARED_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should fail without WEBHOOK_SHARED_SECRET")
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should fail without DATABASE_URL")
	}
}

func TestLoadConfigHonorsExplicitStaleness(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STALENESS_THRESHOLD_SECONDS", "45")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StalenessThreshold != 45*time.Second {
		t.Fatalf("StalenessThreshold mismatch: got %v want %v", cfg.StalenessThreshold, 45*time.Second)
	}
}

func TestLoadConfigRejectsNonPositiveStaleness(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STALENESS_THRESHOLD_SECONDS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should reject a zero staleness threshold")
	}
}
