package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Tiers.FreeThreshold != 0.90 {
		t.Errorf("free threshold = %v, want 0.90", cfg.Tiers.FreeThreshold)
	}
	if cfg.Tiers.PremiumThreshold != 0.70 {
		t.Errorf("premium threshold = %v, want 0.70", cfg.Tiers.PremiumThreshold)
	}
	if cfg.Tiers.AutoApproveThreshold != 0.95 {
		t.Errorf("auto-approve threshold = %v, want 0.95", cfg.Tiers.AutoApproveThreshold)
	}
	if cfg.Tiers.FreeDelay != 18*time.Hour {
		t.Errorf("free delay = %v, want 18h", cfg.Tiers.FreeDelay)
	}
	if cfg.Tiers.MaxFreePerWeek != 2 {
		t.Errorf("max free per week = %d, want 2", cfg.Tiers.MaxFreePerWeek)
	}
	if cfg.Scheduler.CheckInterval != 5*time.Minute {
		t.Errorf("check interval = %v, want 5m", cfg.Scheduler.CheckInterval)
	}
	if cfg.Scoring.MinConfidence != 0.50 {
		t.Errorf("min confidence = %v, want 0.50", cfg.Scoring.MinConfidence)
	}
	if len(cfg.Feeds) == 0 {
		t.Error("expected default feeds")
	}
	if len(cfg.Scoring.Keywords) == 0 {
		t.Error("expected default keywords")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token-123")
	t.Setenv("ADMIN_TELEGRAM_ID", "424242")
	t.Setenv("FREE_TIER_THRESHOLD", "0.85")
	t.Setenv("FREE_TIER_DELAY_HOURS", "12")
	t.Setenv("MAX_FREE_ALERTS_PER_WEEK", "5")
	t.Setenv("CHECK_INTERVAL_MINUTES", "10")
	t.Setenv("VELESTRA_DB_PATH", "/tmp/override.db")

	cfg := Load()

	if cfg.Telegram.BotToken != "token-123" {
		t.Errorf("bot token = %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.AdminChatID != "424242" {
		t.Errorf("admin chat = %q", cfg.Telegram.AdminChatID)
	}
	if cfg.Tiers.FreeThreshold != 0.85 {
		t.Errorf("free threshold = %v, want 0.85", cfg.Tiers.FreeThreshold)
	}
	if cfg.Tiers.FreeDelay != 12*time.Hour {
		t.Errorf("free delay = %v, want 12h", cfg.Tiers.FreeDelay)
	}
	if cfg.Tiers.MaxFreePerWeek != 5 {
		t.Errorf("max free per week = %d, want 5", cfg.Tiers.MaxFreePerWeek)
	}
	if cfg.Scheduler.CheckInterval != 10*time.Minute {
		t.Errorf("check interval = %v, want 10m", cfg.Scheduler.CheckInterval)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestLoadInvalidEnvIgnored(t *testing.T) {
	t.Setenv("FREE_TIER_THRESHOLD", "not-a-number")
	t.Setenv("MAX_FREE_ALERTS_PER_WEEK", "many")

	cfg := Load()

	if cfg.Tiers.FreeThreshold != 0.90 {
		t.Errorf("free threshold = %v, want default 0.90", cfg.Tiers.FreeThreshold)
	}
	if cfg.Tiers.MaxFreePerWeek != 2 {
		t.Errorf("max free per week = %d, want default 2", cfg.Tiers.MaxFreePerWeek)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
database:
  path: /data/velestra.db
tiers:
  freeThreshold: 0.80
  maxFreePerWeek: 4
scoring:
  keywords: ["quantum", "fusion"]
feeds:
  - name: Example
    url: https://example.com/feed
logging:
  level: debug
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VELESTRA_CONFIG", path)

	cfg := Load()

	if cfg.Database.Path != "/data/velestra.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Tiers.FreeThreshold != 0.80 {
		t.Errorf("free threshold = %v, want 0.80", cfg.Tiers.FreeThreshold)
	}
	if cfg.Tiers.MaxFreePerWeek != 4 {
		t.Errorf("max free per week = %d, want 4", cfg.Tiers.MaxFreePerWeek)
	}
	// Unset file fields keep their defaults.
	if cfg.Tiers.PremiumThreshold != 0.70 {
		t.Errorf("premium threshold = %v, want default 0.70", cfg.Tiers.PremiumThreshold)
	}
	if len(cfg.Scoring.Keywords) != 2 || cfg.Scoring.Keywords[0] != "quantum" {
		t.Errorf("keywords = %v", cfg.Scoring.Keywords)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "Example" {
		t.Errorf("feeds = %v", cfg.Feeds)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}

	// Environment still wins over the file.
	t.Setenv("FREE_TIER_THRESHOLD", "0.75")
	cfg = Load()
	if cfg.Tiers.FreeThreshold != 0.75 {
		t.Errorf("free threshold = %v, want env override 0.75", cfg.Tiers.FreeThreshold)
	}
}
