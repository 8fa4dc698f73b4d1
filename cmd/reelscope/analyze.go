package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"reelscope/internal/enrich"
	"reelscope/pkg/analyzer"
	"reelscope/pkg/auth"
	"reelscope/pkg/config"
	"reelscope/pkg/generation"
	"reelscope/pkg/logger"
	"reelscope/pkg/quota"
	"reelscope/pkg/ranking"
	"reelscope/pkg/scenario"
	"reelscope/pkg/scrapejob"
	"reelscope/pkg/storage"
	"reelscope/pkg/ui"
)

var (
	// Analyze command flags
	periodDays   int
	sampleSize   int
	enrichFlag   bool
	contextID    int64
	userID       int64
	profileName  string
	locationName string
	dbPath       string
	workers      int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Analyze content for an account, hashtag, location or link",
	Long: `Run a full content analysis for the given query.

The query form selects the analysis mode:
  @username             analyze an account's recent videos
  #hashtag              analyze videos posted under a hashtag
  loc:<id>              analyze videos posted at a location
  https://.../reel/...  analyze a single video link

Results are ranked by views and likes, filtered to the requested
period, and stored as a report in the local database. With --enrich,
scenario scripts are generated for each ranked item.`,
	Example: `  # Analyze an account's last 30 days
  reelscope analyze @creator

  # Analyze a hashtag over a week, 5 items
  reelscope analyze '#travel' --period 7 --sample 5

  # Analyze a location (use --location-name for the report label)
  reelscope analyze loc:213385402 --location-name "Lisbon"

  # Analyze a single reel and generate scenarios
  reelscope analyze https://instagram.com/reel/AbCdEf123/ --enrich`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&periodDays, "period", 30, "analysis period in days")
	analyzeCmd.Flags().IntVar(&sampleSize, "sample", 10, "number of top items to report")
	analyzeCmd.Flags().BoolVar(&enrichFlag, "enrich", false, "generate scenario scripts for ranked items")
	analyzeCmd.Flags().Int64Var(&contextID, "context", 0, "personalization context ID (see 'reelscope context list')")
	analyzeCmd.Flags().Int64Var(&userID, "user", 1, "user identity for quota accounting")
	analyzeCmd.Flags().StringVarP(&profileName, "profile", "a", "", "use a specific stored credential profile")
	analyzeCmd.Flags().StringVar(&locationName, "location-name", "", "display name for location queries")
	analyzeCmd.Flags().StringVar(&dbPath, "db", "", "path to the reports database")
	analyzeCmd.Flags().IntVar(&workers, "workers", 0, "concurrent scenario generation workers")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	rawQuery := strings.TrimSpace(args[0])
	ui.PrintInfo("Query", rawQuery)

	flags := make(map[string]interface{})
	if dbPath != "" {
		flags["db"] = dbPath
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	resolveCredentials(cfg)
	if cfg.Scrape.Token == "" {
		ui.PrintError("Missing scraping service token",
			"store one with 'reelscope auth login' or set REELSCOPE_SCRAPE_TOKEN")
		os.Exit(1)
	}

	query, err := buildQuery(cfg, rawQuery)
	if err != nil {
		ui.PrintError("Invalid query", err.Error())
		os.Exit(1)
	}

	store, err := storage.New(cfg.Database.Path, log)
	if err != nil {
		ui.PrintError("Failed to open database", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	cleaner := storage.NewCleaner(store, cfg.Database.ReportRetentionDays, 6*time.Hour, log)
	cleaner.Start()
	defer cleaner.Stop()

	client := scrapejob.NewClient(cfg, log)
	guard := quota.New(&cfg.Quota, quota.NewMemoryStore())
	ranker := ranking.NewRanker(cfg.Ranking, cfg.Pricing, log)

	ctx := context.Background()

	var enricher analyzer.Enricher
	if enrichFlag {
		e, err := buildEnricher(ctx, cfg, store, log)
		if err != nil {
			ui.PrintError("Failed to set up scenario generation", err.Error())
			os.Exit(1)
		}
		enricher = e
	}

	a := analyzer.New(cfg, guard, client, ranker, store, enricher, log)

	req := analyzer.Request{
		UserID:          userID,
		Username:        fmt.Sprintf("cli-%d", userID),
		Query:           query,
		ContextID:       contextID,
		EnrichScenarios: enrichFlag,
		Notify: func(message string) error {
			fmt.Println()
			fmt.Println(ui.Dim(message))
			return nil
		},
	}

	outcome, err := a.Analyze(ctx, req)
	if err != nil {
		ui.PrintError("Analysis failed", err.Error())
		os.Exit(1)
	}

	printOutcome(outcome)
	ui.PrintSuccess("Report saved: " + outcome.ReportID)
}

// resolveCredentials fills token fields from the credential manager when
// config and environment left them empty
func resolveCredentials(cfg *config.Config) {
	if cfg.Scrape.Token != "" && cfg.Generation.APIKey != "" {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		return
	}

	var creds *auth.Credentials
	if profileName != "" {
		creds, err = manager.Retrieve(profileName)
	} else {
		creds, err = manager.RetrieveDefault()
	}
	if err != nil || creds == nil {
		return
	}

	if cfg.Scrape.Token == "" {
		cfg.Scrape.Token = creds.ScrapeToken
	}
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = creds.GenerationKey
	}
}

// buildQuery maps the query argument onto an analysis mode
func buildQuery(cfg *config.Config, raw string) (scrapejob.Query, error) {
	switch {
	case strings.HasPrefix(raw, "#"):
		return scrapejob.NewHashtagQuery(&cfg.Job, raw, periodDays, sampleSize), nil
	case strings.HasPrefix(raw, "loc:"):
		id := strings.TrimPrefix(raw, "loc:")
		name := locationName
		if name == "" {
			name = id
		}
		return scrapejob.NewLocationQuery(&cfg.Job, id, name, periodDays, sampleSize), nil
	case strings.Contains(raw, "://"):
		return scrapejob.NewDirectItemQuery(raw)
	default:
		return scrapejob.NewAccountQuery(&cfg.Job, raw, periodDays, sampleSize), nil
	}
}

func buildEnricher(ctx context.Context, cfg *config.Config, store *storage.Store, log logger.Logger) (*enrich.Enricher, error) {
	if cfg.Generation.APIKey == "" {
		return nil, fmt.Errorf("generation API key is not configured")
	}

	gen, err := generation.NewClient(ctx, cfg.Generation, log)
	if err != nil {
		return nil, err
	}

	// Frame extraction is best-effort: without ffmpeg the pipeline still
	// runs and marks the visual stage as degraded
	var frames scenario.FrameSource
	if fs, err := scenario.NewFFmpegFrameSource(cfg.Generation.MaxFrames, log); err == nil {
		frames = fs
	} else {
		ui.PrintWarning("ffmpeg not found, visual analysis disabled")
	}

	pipeline := scenario.NewPipeline(gen, frames, nil, store, log)
	return enrich.New(pipeline, cfg.Enrich.Workers, log), nil
}

func printOutcome(outcome *analyzer.Outcome) {
	batch := outcome.Batch

	fmt.Println()
	ui.PrintHighlight(fmt.Sprintf("=== %s ===", batch.Query))
	if batch.Fallback {
		ui.PrintWarning("Not enough recent content; showing best available items")
	}

	for i, item := range batch.Items {
		fmt.Printf("%2d. %s\n", i+1, item.Title)
		fmt.Printf("    %s  views %d  likes %d  comments %d  ER %.1f%%\n",
			item.AuthorUsername, item.Views, item.Likes, item.Comments, item.EngagementRate)
		fmt.Printf("    %s\n", ui.Dim(item.URL))
	}

	if len(batch.Insights) > 0 {
		fmt.Println()
		ui.PrintHighlight("Insights")
		for _, insight := range batch.Insights {
			fmt.Println("  - " + insight)
		}
	}
	if len(batch.Recommendations) > 0 {
		fmt.Println()
		ui.PrintHighlight("Recommendations")
		for _, rec := range batch.Recommendations {
			fmt.Println("  - " + rec)
		}
	}

	fmt.Println()
	ui.PrintInfo("Cost", fmt.Sprintf("$%.4f (%.2f RUB)", batch.CostUSD, batch.CostRUB))

	for _, result := range outcome.Scenarios {
		if result == nil {
			continue
		}
		fmt.Println()
		ui.PrintHighlight("Scenario for " + result.ItemID)
		if result.ErrorMessage != "" {
			ui.PrintWarning("Generation failed", result.ErrorMessage)
			continue
		}
		fmt.Println(result.Original.TextOr("(no scenario generated)"))
		if result.Variant.Succeeded() {
			fmt.Println()
			fmt.Println(ui.Dim("Alternative take:"))
			fmt.Println(result.Variant.Text)
		}
		if result.Personalized.Succeeded() {
			fmt.Println()
			fmt.Println(ui.Dim("Personalized:"))
			fmt.Println(result.Personalized.Text)
		}
	}
}
