package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"reelscope/pkg/config"
	"reelscope/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Reelscope configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (REELSCOPE_ prefix)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as 'reelscope.yaml'
unless a different path is given with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

Sensitive values like API tokens are masked.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks YAML syntax, required fields, and value ranges.`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# Reelscope configuration file
#
# Every value here can also be set through environment variables with
# the REELSCOPE_ prefix, e.g. REELSCOPE_SCRAPE_TOKEN, REELSCOPE_DB_PATH.

# Scraping service
scrape:
  base_url: "https://api.apify.com/v2"
  actor_id: "apify/instagram-scraper"
  # Token is better stored via 'reelscope auth login' or the
  # REELSCOPE_SCRAPE_TOKEN environment variable
  token: ""
  request_timeout: 30s

# Scenario generation (optional, used by 'analyze --enrich')
generation:
  api_key: ""
  vision_model: "gemini-1.5-pro"
  text_model: "gemini-1.5-flash"
  max_frames: 8
  temperature: 0.7

# Per-user request quotas
quota:
  rolling_limit: 10
  rolling_window: 24h
  monthly_limit: 10

# Scrape job lifecycle
job:
  max_poll_attempts: 90
  poll_interval: 2s
  sample_ceiling: 10
  max_retries: 3
  retry_delay: 5s
  account_fetch_factor: 2
  account_fetch_cap: 20
  hashtag_fetch_factor: 3
  hashtag_fetch_cap: 30
  location_fetch_factor: 2
  location_fetch_cap: 20

# Ranking and insights
ranking:
  fallback_minimum: 3
  top_hashtags: 10
  cta_threshold_er: 5.0
  cost_per_item_usd: 0.00025
  short_duration_sec: 15
  long_duration_sec: 30

# Cost presentation
pricing:
  usd_to_rub: 90.0
  markup: 2.0

# Scenario generation concurrency
enrich:
  workers: 3

# Report storage
database:
  path: "./reelscope.db"
  report_retention_days: 30

# Logging
logging:
  level: "info"
  file: ""
  max_size: 100
  max_backups: 3
  max_age: 7
  compress: false
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "reelscope.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to write configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Created " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. reelscope auth login      # store your API tokens")
	fmt.Println("  2. reelscope analyze @user   # run your first analysis")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Mask secrets before printing
	masked := *cfg
	if masked.Scrape.Token != "" {
		masked.Scrape.Token = maskSecret(masked.Scrape.Token)
	}
	if masked.Generation.APIKey != "" {
		masked.Generation.APIKey = maskSecret(masked.Generation.APIKey)
	}

	data, err := yaml.Marshal(&masked)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}
	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if _, err := config.Load(configFile, nil); err != nil {
		ui.PrintError("Configuration is invalid", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Configuration is valid")
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
