package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv           = "VELESTRA_CONFIG"
	databasePathEnv         = "VELESTRA_DB_PATH"
	telegramTokenEnv        = "TELEGRAM_BOT_TOKEN"
	adminChatIDEnv          = "ADMIN_TELEGRAM_ID"
	freeChannelIDEnv        = "FREE_TELEGRAM_CHANNEL_ID"
	premiumChannelIDEnv     = "PREMIUM_TELEGRAM_CHANNEL_ID"
	freeThresholdEnv        = "FREE_TIER_THRESHOLD"
	premiumThresholdEnv     = "PREMIUM_TIER_THRESHOLD"
	autoApproveThresholdEnv = "AUTO_APPROVE_THRESHOLD"
	freeDelayHoursEnv       = "FREE_TIER_DELAY_HOURS"
	maxFreePerWeekEnv       = "MAX_FREE_ALERTS_PER_WEEK"
	checkIntervalEnv        = "CHECK_INTERVAL_MINUTES"
	logLevelEnv             = "VELESTRA_LOG_LEVEL"
)

// Config holds all settings the system reads at startup. It is built once in
// main and passed into constructors; nothing mutates it afterwards.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Tiers     TierConfig      `yaml:"tiers"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Feeds     []FeedConfig    `yaml:"feeds"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig controls the two polling loops.
type SchedulerConfig struct {
	CheckInterval     time.Duration `yaml:"checkInterval"`
	AdminPollInterval time.Duration `yaml:"adminPollInterval"`
}

// TelegramConfig wires the bot token and the three destinations. Any empty
// destination downgrades the corresponding sends to logged no-ops.
type TelegramConfig struct {
	BotToken         string `yaml:"botToken"`
	AdminChatID      string `yaml:"adminChatId"`
	FreeChannelID    string `yaml:"freeChannelId"`
	PremiumChannelID string `yaml:"premiumChannelId"`
}

// TierConfig carries the routing thresholds and the free-tier release policy.
type TierConfig struct {
	FreeThreshold        float64       `yaml:"freeThreshold"`
	PremiumThreshold     float64       `yaml:"premiumThreshold"`
	AutoApproveThreshold float64       `yaml:"autoApproveThreshold"`
	FreeDelay            time.Duration `yaml:"freeDelay"`
	MaxFreePerWeek       int           `yaml:"maxFreePerWeek"`
	PremiumKeywords      []string      `yaml:"premiumKeywords"`
}

// ScoringConfig parameterizes the lexical classifier.
type ScoringConfig struct {
	KeywordWeight float64       `yaml:"keywordWeight"`
	MinConfidence float64       `yaml:"minConfidence"`
	RecencyWindow time.Duration `yaml:"recencyWindow"`
	Keywords      []string      `yaml:"keywords"`
}

// FeedConfig names one RSS/Atom source to poll.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LoggingConfig selects slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides on top of built-in defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}
	if len(cfg.Scoring.Keywords) == 0 {
		cfg.Scoring.Keywords = defaultConfig().Scoring.Keywords
	}
	if len(cfg.Tiers.PremiumKeywords) == 0 {
		cfg.Tiers.PremiumKeywords = defaultConfig().Tiers.PremiumKeywords
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(adminChatIDEnv); v != "" {
		c.Telegram.AdminChatID = v
	}
	if v := os.Getenv(freeChannelIDEnv); v != "" {
		c.Telegram.FreeChannelID = v
	}
	if v := os.Getenv(premiumChannelIDEnv); v != "" {
		c.Telegram.PremiumChannelID = v
	}
	if v, ok := envFloat(freeThresholdEnv); ok {
		c.Tiers.FreeThreshold = v
	}
	if v, ok := envFloat(premiumThresholdEnv); ok {
		c.Tiers.PremiumThreshold = v
	}
	if v, ok := envFloat(autoApproveThresholdEnv); ok {
		c.Tiers.AutoApproveThreshold = v
	}
	if v, ok := envInt(freeDelayHoursEnv); ok {
		c.Tiers.FreeDelay = time.Duration(v) * time.Hour
	}
	if v, ok := envInt(maxFreePerWeekEnv); ok {
		c.Tiers.MaxFreePerWeek = v
	}
	if v, ok := envInt(checkIntervalEnv); ok {
		c.Scheduler.CheckInterval = time.Duration(v) * time.Minute
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func envFloat(name string) (float64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q: %v (ignored)", name, raw, err)
		return 0, false
	}
	return v, true
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q: %v (ignored)", name, raw, err)
		return 0, false
	}
	return v, true
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CheckInterval > 0 {
		base.Scheduler.CheckInterval = override.Scheduler.CheckInterval
	}
	if override.Scheduler.AdminPollInterval > 0 {
		base.Scheduler.AdminPollInterval = override.Scheduler.AdminPollInterval
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.AdminChatID != "" {
		base.Telegram.AdminChatID = override.Telegram.AdminChatID
	}
	if override.Telegram.FreeChannelID != "" {
		base.Telegram.FreeChannelID = override.Telegram.FreeChannelID
	}
	if override.Telegram.PremiumChannelID != "" {
		base.Telegram.PremiumChannelID = override.Telegram.PremiumChannelID
	}

	if override.Tiers.FreeThreshold > 0 {
		base.Tiers.FreeThreshold = override.Tiers.FreeThreshold
	}
	if override.Tiers.PremiumThreshold > 0 {
		base.Tiers.PremiumThreshold = override.Tiers.PremiumThreshold
	}
	if override.Tiers.AutoApproveThreshold > 0 {
		base.Tiers.AutoApproveThreshold = override.Tiers.AutoApproveThreshold
	}
	if override.Tiers.FreeDelay > 0 {
		base.Tiers.FreeDelay = override.Tiers.FreeDelay
	}
	if override.Tiers.MaxFreePerWeek > 0 {
		base.Tiers.MaxFreePerWeek = override.Tiers.MaxFreePerWeek
	}
	if len(override.Tiers.PremiumKeywords) > 0 {
		base.Tiers.PremiumKeywords = override.Tiers.PremiumKeywords
	}

	if override.Scoring.KeywordWeight > 0 {
		base.Scoring.KeywordWeight = override.Scoring.KeywordWeight
	}
	if override.Scoring.MinConfidence > 0 {
		base.Scoring.MinConfidence = override.Scoring.MinConfidence
	}
	if override.Scoring.RecencyWindow > 0 {
		base.Scoring.RecencyWindow = override.Scoring.RecencyWindow
	}
	if len(override.Scoring.Keywords) > 0 {
		base.Scoring.Keywords = override.Scoring.Keywords
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "velestra.db"},
		Scheduler: SchedulerConfig{
			CheckInterval:     5 * time.Minute,
			AdminPollInterval: 30 * time.Second,
		},
		Tiers: TierConfig{
			FreeThreshold:        0.90,
			PremiumThreshold:     0.70,
			AutoApproveThreshold: 0.95,
			FreeDelay:            18 * time.Hour,
			MaxFreePerWeek:       2,
			PremiumKeywords: []string{
				"series a", "series b", "series c", "funding round", "acquisition",
				"merger", "ipo", "partnership", "enterprise deal", "strategic",
			},
		},
		Scoring: ScoringConfig{
			KeywordWeight: 0.06,
			MinConfidence: 0.50,
			RecencyWindow: 4 * time.Hour,
			Keywords: []string{
				"artificial intelligence", "ai", "machine learning", "ml",
				"gpt", "llm", "chatbot", "automation", "startup",
				"funding", "series a", "series b", "launch", "api",
				"breakthrough", "model", "platform", "tool", "raises",
				"million", "billion", "venture", "announces", "releases",
				"acquires", "acquisition", "merger", "ipo", "partnership",
				"enterprise", "saas", "developer", "infrastructure",
				"neural network", "deep learning", "transformer", "generative",
			},
		},
		Feeds: []FeedConfig{
			{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
			{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
			{Name: "Hacker News", URL: "https://hnrss.org/frontpage"},
			{Name: "VentureBeat", URL: "https://venturebeat.com/feed/"},
			{Name: "Ars Technica", URL: "https://arstechnica.com/feed/"},
			{Name: "Y Combinator", URL: "https://www.ycombinator.com/blog/rss"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
