package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"reelscope/pkg/config"
	"reelscope/pkg/logger"
	"reelscope/pkg/quota"
	"reelscope/pkg/storage"
	"reelscope/pkg/ui"
)

var (
	usageUserID int64
	usageLimit  int
)

// usageCmd represents the usage command
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show quota usage and recent reports",
	Long: `Show the current quota consumption for a user together with their
most recent analysis reports.`,
	Run: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().Int64Var(&usageUserID, "user", 1, "user identity to inspect")
	usageCmd.Flags().IntVar(&usageLimit, "limit", 5, "number of recent reports to show")
	usageCmd.Flags().StringVar(&dbPath, "db", "", "path to the reports database")
}

func runUsage(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if dbPath != "" {
		flags["db"] = dbPath
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

	guard := quota.New(&cfg.Quota, quota.NewMemoryStore())
	usage := guard.Usage(usageUserID)

	ui.PrintHighlight("Quota")
	fmt.Printf("  window:  %d of %d used, %d remaining\n",
		usage.RollingUsed, usage.RollingLimit, usage.RollingRemaining)
	fmt.Printf("  month:   %d of %d used, %d remaining (resets %s)\n",
		usage.MonthlyUsed, usage.MonthlyLimit, usage.MonthlyRemaining,
		usage.MonthResetDate.Format("2006-01-02"))
	if !usage.MonthFirstEvent.IsZero() {
		fmt.Printf("  since:   first request this month at %s\n",
			usage.MonthFirstEvent.Format("2006-01-02 15:04"))
	}

	store, err := storage.New(cfg.Database.Path, log)
	if err != nil {
		ui.PrintError("Failed to open database", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	user, err := store.GetOrCreateUser(ctx, usageUserID, fmt.Sprintf("cli-%d", usageUserID), "", "")
	if err != nil {
		ui.PrintError("Failed to resolve user", err.Error())
		os.Exit(1)
	}

	reports, err := store.ListReports(ctx, user.ID, usageLimit)
	if err != nil {
		ui.PrintError("Failed to list reports", err.Error())
		os.Exit(1)
	}

	fmt.Println()
	ui.PrintHighlight("Recent reports")
	if len(reports) == 0 {
		fmt.Println("  none yet")
		return
	}
	for _, report := range reports {
		fmt.Printf("  %s  %-10s  %s  $%.4f\n",
			report.CreatedAt.Format("2006-01-02 15:04"), report.Status, report.Query, report.CostUSD)
	}
}
