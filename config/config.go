// Package config loads the runtime configuration: Telegram credentials and
// optional integrations from the environment, the source inventory and
// pipeline tunables from a YAML document.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	KindPage   = "page"
	KindFeed   = "feed"
	KindSearch = "search"
)

// Configuration validation errors.
var (
	ErrMissingCredentials       = errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")
	ErrNoSources                = errors.New("at least one source is required")
	ErrUnknownSourceKind        = errors.New("source kind must be one of: page, feed, search")
	ErrSourceMissingURL         = errors.New("source url is required")
	ErrSourceMissingName        = errors.New("source name is required")
	ErrSourceMissingSelector    = errors.New("page source requires a selector")
	ErrSourceMissingArchive     = errors.New("source archive_file is required")
	ErrSourceMissingSentIDs     = errors.New("source sent_ids_file is required")
	ErrSharedArchiveFile        = errors.New("archive_file may not be shared between sources")
	ErrSharedSentIDsFile        = errors.New("sent_ids_file may not be shared between sources")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidTimezone          = errors.New("timezone is not a valid IANA location")
	ErrInvalidDigestHour        = errors.New("digest_hour must be between -1 and 23")
	ErrInvalidWorkers           = errors.New("workers must be at least 1")
	ErrInvalidMaxItems          = errors.New("max_items must be at least 1")
	ErrInvalidWatermark         = errors.New("watermark must be at most 128 runes")
)

// maxWatermarkRunes leaves room in the 1024-rune photo caption for the
// article body after the watermark is appended.
const maxWatermarkRunes = 128

// Config is the full runtime configuration for one batch run.
type Config struct {
	// From the environment.
	BotToken  string `yaml:"-"`
	ChatID    string `yaml:"-"`
	CohereKey string `yaml:"-"`
	RedisAddr string `yaml:"-"`
	S3Bucket  string `yaml:"-"`
	S3Region  string `yaml:"-"`
	S3Prefix  string `yaml:"-"`

	// From the YAML document.
	Sources         []SourceConfig `yaml:"sources"`
	ExcludeKeywords []string       `yaml:"exclude_keywords"`
	Retry           RetryPolicy    `yaml:"retry"`
	Watermark       string         `yaml:"watermark"`
	Timezone        string         `yaml:"timezone"`
	DigestHour      int            `yaml:"digest_hour"`
	Workers         int            `yaml:"workers"`
	MaxItems        int            `yaml:"max_items"`
}

// SourceConfig describes one configured origin of articles.
type SourceConfig struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	URL         string `yaml:"url"`
	Selector    string `yaml:"selector"`
	Query       string `yaml:"query"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Include     string `yaml:"include"`
	ArchiveFile string `yaml:"archive_file"`
	SentIDsFile string `yaml:"sent_ids_file"`
	MaxItems    int    `yaml:"max_items"`
}

// RetryPolicy defines retry behavior for network calls.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// Delay calculates the exponential backoff delay before the given attempt
// (1-based). The first attempt has no delay.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delayMs := float64(rp.InitialDelayMs)
	for i := 2; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}
	if rp.MaxDelayMs > 0 && delayMs > float64(rp.MaxDelayMs) {
		delayMs = float64(rp.MaxDelayMs)
	}
	return time.Duration(delayMs) * time.Millisecond
}

// Timeout returns the per-request timeout.
func (rp *RetryPolicy) Timeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// Load reads the YAML source inventory at path and merges in environment
// configuration. Missing Telegram credentials are a fatal configuration
// error: the pipeline must not touch any source without them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.CohereKey = os.Getenv("COHERE_API_KEY")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3Prefix = os.Getenv("S3_PREFIX")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    4000,
			MaxDelayMs:        60000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        10,
		},
		Watermark:  "@Stock_Market_News_Buzz",
		Timezone:   "Asia/Kolkata",
		DigestHour: -1,
		Workers:    3,
		MaxItems:   10,
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.BotToken == "" || c.ChatID == "" {
		return ErrMissingCredentials
	}
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	archives := make(map[string]bool, len(c.Sources))
	sentIDs := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		switch src.Kind {
		case KindPage, KindFeed, KindSearch:
		default:
			return fmt.Errorf("%w: source[%d] kind %q", ErrUnknownSourceKind, i, src.Kind)
		}
		if src.Name == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingName, i)
		}
		if src.URL == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingURL, i)
		}
		if src.Kind == KindPage && src.Selector == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingSelector, i)
		}
		if src.ArchiveFile == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingArchive, i)
		}
		if src.SentIDsFile == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingSentIDs, i)
		}
		if src.MaxItems < 0 {
			return fmt.Errorf("%w: source[%d]", ErrInvalidMaxItems, i)
		}
		if archives[src.ArchiveFile] {
			return fmt.Errorf("%w: %s", ErrSharedArchiveFile, src.ArchiveFile)
		}
		if sentIDs[src.SentIDsFile] {
			return fmt.Errorf("%w: %s", ErrSharedSentIDsFile, src.SentIDsFile)
		}
		archives[src.ArchiveFile] = true
		sentIDs[src.SentIDsFile] = true
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}
	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	if c.DigestHour < -1 || c.DigestHour > 23 {
		return ErrInvalidDigestHour
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.MaxItems < 1 {
		return ErrInvalidMaxItems
	}
	if utf8.RuneCountInString(c.Watermark) > maxWatermarkRunes {
		return ErrInvalidWatermark
	}
	return nil
}

// Location returns the pinned timezone used for all calendar-day decisions.
// Validate has already established it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ItemCap returns the per-source item cap, honoring a per-source override.
func (c *Config) ItemCap(src SourceConfig) int {
	if src.MaxItems > 0 {
		return src.MaxItems
	}
	return c.MaxItems
}
