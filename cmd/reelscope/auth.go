package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"reelscope/pkg/auth"
	"reelscope/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Tokens are billing credentials; never share them or commit them.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store API tokens securely",
	Long: `Store API tokens securely in the system keychain or an encrypted file.

You will be prompted for:
  - Profile name (if not provided; defaults to "default")
  - Scraping service API token (required)
  - Generation API key (optional, only needed for --enrich)`,
	Example: `  # Interactive login
  reelscope auth login

  # Store under a named profile
  reelscope auth login work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove stored credentials",
	Long: `Remove stored API credentials.

Without a profile name every stored profile is removed.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credential profiles",
	Long:  `List all stored credential profiles with secrets masked.`,
	Run:   runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	name := "default"
	if len(args) > 0 {
		name = args[0]
	}

	auth.ShowTokenSetupGuide()

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Profile %q already exists. Overwrite? (y/N): ", name)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return
		}
	}

	scrapeToken, err := promptSecret("🔑 Scraping service token: ")
	if err != nil {
		ui.PrintError("Failed to read token", err.Error())
		os.Exit(1)
	}
	if scrapeToken == "" {
		ui.PrintError("Scraping service token is required")
		os.Exit(1)
	}

	generationKey, err := promptSecret("🤖 Generation API key (optional, Enter to skip): ")
	if err != nil {
		ui.PrintError("Failed to read key", err.Error())
		os.Exit(1)
	}

	creds := &auth.Credentials{
		Name:          name,
		ScrapeToken:   scrapeToken,
		GenerationKey: generationKey,
	}
	if err := manager.Store(creds); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for profile %q", name))
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove credentials", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("All stored credentials removed")
		return
	}

	if err := manager.Delete(args[0]); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Credentials removed for profile %q", args[0]))
}

func runAuthList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	profiles, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list credentials", err.Error())
		os.Exit(1)
	}
	if len(profiles) == 0 {
		fmt.Println("No stored credentials. Run 'reelscope auth login' to add some.")
		return
	}

	for _, creds := range profiles {
		sanitized := auth.Sanitize(creds)
		fmt.Printf("%s\n", ui.Cyan(sanitized.Name))
		fmt.Printf("  scrape token:   %s\n", sanitized.ScrapeToken)
		fmt.Printf("  generation key: %s\n", sanitized.GenerationKey)
		fmt.Printf("  modified:       %s\n", sanitized.LastModified.Format("2006-01-02 15:04"))
	}
}

// promptSecret reads a secret without echoing it to the terminal
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
