package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the analyzer
type Config struct {
	// Scraping job service settings
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Generation service settings
	Generation GenerationConfig `yaml:"generation" json:"generation"`

	// Per-user quota settings
	Quota QuotaConfig `yaml:"quota" json:"quota"`

	// Job polling and sampling settings
	Job JobConfig `yaml:"job" json:"job"`

	// Ranking thresholds
	Ranking RankingConfig `yaml:"ranking" json:"ranking"`

	// Cost estimation settings
	Pricing PricingConfig `yaml:"pricing" json:"pricing"`

	// Scenario enrichment settings
	Enrich EnrichConfig `yaml:"enrich" json:"enrich"`

	// Local database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScrapeConfig holds settings for the external scraping job service
type ScrapeConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	ActorID        string        `yaml:"actor_id" json:"actor_id"`
	Token          string        `yaml:"token" json:"token"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// GenerationConfig holds settings for the text/vision generation service
type GenerationConfig struct {
	APIKey      string  `yaml:"api_key" json:"api_key"`
	VisionModel string  `yaml:"vision_model" json:"vision_model"`
	TextModel   string  `yaml:"text_model" json:"text_model"`
	MaxFrames   int     `yaml:"max_frames" json:"max_frames"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
}

// QuotaConfig holds per-user quota limits
type QuotaConfig struct {
	RollingLimit  int           `yaml:"rolling_limit" json:"rolling_limit"`
	RollingWindow time.Duration `yaml:"rolling_window" json:"rolling_window"`
	MonthlyLimit  int           `yaml:"monthly_limit" json:"monthly_limit"`
}

// JobConfig holds polling and sampling settings for scrape jobs
type JobConfig struct {
	MaxPollAttempts int           `yaml:"max_poll_attempts" json:"max_poll_attempts"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	SampleCeiling   int           `yaml:"sample_ceiling" json:"sample_ceiling"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`

	// Over-fetch settings per query mode. Each mode fetches a multiple of
	// the requested sample size to survive eligibility and recency filtering.
	AccountFetchFactor  int `yaml:"account_fetch_factor" json:"account_fetch_factor"`
	AccountFetchCap     int `yaml:"account_fetch_cap" json:"account_fetch_cap"`
	HashtagFetchFactor  int `yaml:"hashtag_fetch_factor" json:"hashtag_fetch_factor"`
	HashtagFetchCap     int `yaml:"hashtag_fetch_cap" json:"hashtag_fetch_cap"`
	LocationFetchFactor int `yaml:"location_fetch_factor" json:"location_fetch_factor"`
	LocationFetchCap    int `yaml:"location_fetch_cap" json:"location_fetch_cap"`
}

// RankingConfig holds thresholds used when ranking scraped items
type RankingConfig struct {
	// FallbackMinimum is the smallest acceptable recency-filtered sample
	// before the ranker falls back to popularity-only ranking. The value is
	// a heuristic carried over from production behavior.
	FallbackMinimum  int     `yaml:"fallback_minimum" json:"fallback_minimum"`
	TopHashtags      int     `yaml:"top_hashtags" json:"top_hashtags"`
	CTAThresholdER   float64 `yaml:"cta_threshold_er" json:"cta_threshold_er"`
	CostPerItemUSD   float64 `yaml:"cost_per_item_usd" json:"cost_per_item_usd"`
	ShortDurationSec int     `yaml:"short_duration_sec" json:"short_duration_sec"`
	LongDurationSec  int     `yaml:"long_duration_sec" json:"long_duration_sec"`
}

// PricingConfig holds currency conversion for cost estimates
type PricingConfig struct {
	USDToRUB float64 `yaml:"usd_to_rub" json:"usd_to_rub"`
	Markup   float64 `yaml:"markup" json:"markup"`
}

// EnrichConfig holds settings for concurrent scenario enrichment
type EnrichConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// DatabaseConfig holds local persistence settings
type DatabaseConfig struct {
	Path                string `yaml:"path" json:"path"`
	ReportRetentionDays int    `yaml:"report_retention_days" json:"report_retention_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			BaseURL:        "https://api.apify.com/v2",
			ActorID:        "apify/instagram-scraper",
			RequestTimeout: 30 * time.Second,
		},
		Generation: GenerationConfig{
			VisionModel: "gemini-1.5-pro",
			TextModel:   "gemini-1.5-flash",
			MaxFrames:   8,
			Temperature: 0.7,
		},
		Quota: QuotaConfig{
			RollingLimit:  10,
			RollingWindow: 24 * time.Hour,
			MonthlyLimit:  10,
		},
		Job: JobConfig{
			MaxPollAttempts:     90,
			PollInterval:        2 * time.Second,
			SampleCeiling:       10,
			MaxRetries:          3,
			RetryDelay:          5 * time.Second,
			AccountFetchFactor:  2,
			AccountFetchCap:     20,
			HashtagFetchFactor:  3,
			HashtagFetchCap:     30,
			LocationFetchFactor: 2,
			LocationFetchCap:    20,
		},
		Ranking: RankingConfig{
			FallbackMinimum:  3,
			TopHashtags:      10,
			CTAThresholdER:   5.0,
			CostPerItemUSD:   0.00025,
			ShortDurationSec: 15,
			LongDurationSec:  30,
		},
		Pricing: PricingConfig{
			USDToRUB: 90.0,
			Markup:   2.0,
		},
		Enrich: EnrichConfig{
			Workers: 3,
		},
		Database: DatabaseConfig{
			Path:                "./reelscope.db",
			ReportRetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Service credentials
	if token := os.Getenv("REELSCOPE_SCRAPE_TOKEN"); token != "" {
		c.Scrape.Token = token
	}
	if key := os.Getenv("REELSCOPE_GENERATION_KEY"); key != "" {
		c.Generation.APIKey = key
	}
	if baseURL := os.Getenv("REELSCOPE_SCRAPE_BASE_URL"); baseURL != "" {
		c.Scrape.BaseURL = baseURL
	}

	// Quota limits
	if limit := os.Getenv("REELSCOPE_ROLLING_LIMIT"); limit != "" {
		var val int
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.Quota.RollingLimit = val
		}
	}
	if limit := os.Getenv("REELSCOPE_MONTHLY_LIMIT"); limit != "" {
		var val int
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.Quota.MonthlyLimit = val
		}
	}

	// Polling
	if attempts := os.Getenv("REELSCOPE_MAX_POLL_ATTEMPTS"); attempts != "" {
		var val int
		fmt.Sscanf(attempts, "%d", &val)
		if val > 0 {
			c.Job.MaxPollAttempts = val
		}
	}

	// Database path
	if path := os.Getenv("REELSCOPE_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	// Logging level
	if logLevel := os.Getenv("REELSCOPE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".reelscope.yaml",
		".reelscope.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "reelscope", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "reelscope", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".reelscope.yaml"),
		filepath.Join(os.Getenv("HOME"), ".reelscope.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Validate service settings
	if c.Scrape.BaseURL == "" {
		errs = append(errs, errors.New("scrape service base URL is required"))
	}
	if c.Scrape.ActorID == "" {
		errs = append(errs, errors.New("scrape actor ID is required"))
	}
	if c.Scrape.RequestTimeout <= 0 {
		errs = append(errs, errors.New("scrape request timeout must be positive"))
	}

	// Validate quota limits
	if c.Quota.RollingLimit <= 0 {
		errs = append(errs, errors.New("rolling quota limit must be positive"))
	}
	if c.Quota.RollingWindow <= 0 {
		errs = append(errs, errors.New("rolling quota window must be positive"))
	}
	if c.Quota.MonthlyLimit <= 0 {
		errs = append(errs, errors.New("monthly quota limit must be positive"))
	}

	// Validate job settings
	if c.Job.MaxPollAttempts <= 0 {
		errs = append(errs, errors.New("max poll attempts must be positive"))
	}
	if c.Job.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Job.SampleCeiling <= 0 {
		errs = append(errs, errors.New("sample ceiling must be positive"))
	}

	// Validate ranking thresholds
	if c.Ranking.FallbackMinimum < 0 {
		errs = append(errs, errors.New("fallback minimum cannot be negative"))
	}
	if c.Ranking.TopHashtags <= 0 {
		errs = append(errs, errors.New("top hashtags count must be positive"))
	}

	// Validate enrichment settings
	if c.Enrich.Workers <= 0 {
		errs = append(errs, errors.New("enrichment workers must be positive"))
	}
	if c.Enrich.Workers > 10 {
		errs = append(errs, errors.New("enrichment workers should not exceed 10"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["scrape-token"].(string); ok && token != "" {
		c.Scrape.Token = token
	}
	if key, ok := flags["generation-key"].(string); ok && key != "" {
		c.Generation.APIKey = key
	}
	if dbPath, ok := flags["db"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Enrich.Workers = workers
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".reelscope.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
