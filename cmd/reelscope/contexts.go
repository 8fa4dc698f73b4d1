package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"reelscope/pkg/config"
	"reelscope/pkg/logger"
	"reelscope/pkg/storage"
	"reelscope/pkg/ui"
)

var (
	contextUserID      int64
	contextDescription string
)

// contextCmd represents the context command
var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage personalization contexts",
	Long: `Manage personalization contexts used for scenario generation.

A context describes your channel or audience in free text. When an
analysis runs with --context <id>, generated scenarios are adapted to
that description.`,
}

var contextAddCmd = &cobra.Command{
	Use:   "add <name> <description text>",
	Short: "Create a personalization context",
	Example: `  reelscope context add fitness "fitness coach for busy beginners,
  friendly tone, 30-60 second workout reels"`,
	Args: cobra.MinimumNArgs(2),
	Run:  runContextAdd,
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored contexts",
	Run:   runContextList,
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	Run:   runContextDelete,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextAddCmd)
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextDeleteCmd)

	contextCmd.PersistentFlags().Int64Var(&contextUserID, "user", 1, "user identity owning the context")
	contextCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the reports database")
	contextAddCmd.Flags().StringVar(&contextDescription, "note", "", "short label shown in listings")
}

func openContextStore() (*storage.Store, *storage.User, context.Context) {
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

	store, err := storage.New(cfg.Database.Path, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to open database", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	user, err := store.GetOrCreateUser(ctx, contextUserID, fmt.Sprintf("cli-%d", contextUserID), "", "")
	if err != nil {
		ui.PrintError("Failed to resolve user", err.Error())
		os.Exit(1)
	}

	return store, user, ctx
}

func runContextAdd(cmd *cobra.Command, args []string) {
	store, user, ctx := openContextStore()
	defer store.Close()

	name := args[0]
	data := strings.Join(args[1:], " ")

	created, err := store.CreateContext(ctx, user.ID, name, contextDescription, data)
	if err != nil {
		ui.PrintError("Failed to create context", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Context %q created with ID %d", name, created.ID))
}

func runContextList(cmd *cobra.Command, args []string) {
	store, user, ctx := openContextStore()
	defer store.Close()

	contexts, err := store.ListContexts(ctx, user.ID)
	if err != nil {
		ui.PrintError("Failed to list contexts", err.Error())
		os.Exit(1)
	}
	if len(contexts) == 0 {
		fmt.Println("No contexts yet. Create one with 'reelscope context add'.")
		return
	}

	for _, uc := range contexts {
		fmt.Printf("%4d  %s\n", uc.ID, ui.Cyan(uc.Name))
		if uc.Description != "" {
			fmt.Printf("      %s\n", ui.Dim(uc.Description))
		}
		preview := uc.ContextData
		if len(preview) > 80 {
			preview = preview[:77] + "..."
		}
		fmt.Printf("      %s\n", preview)
	}
}

func runContextDelete(cmd *cobra.Command, args []string) {
	store, user, ctx := openContextStore()
	defer store.Close()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		ui.PrintError("Invalid context ID", args[0])
		os.Exit(1)
	}

	if err := store.DeleteContext(ctx, user.ID, id); err != nil {
		ui.PrintError("Failed to delete context", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Context %d deleted", id))
}
