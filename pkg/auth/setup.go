package auth

import (
	"fmt"
	"strings"
)

// ShowTokenSetupGuide displays step-by-step instructions for obtaining
// the API tokens the analyzer needs.
func ShowTokenSetupGuide() {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("🔑 API TOKEN SETUP GUIDE")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	fmt.Println("The analyzer talks to two external services. You need a token")
	fmt.Println("for each of them:")
	fmt.Println()

	fmt.Println("📡 STEP 1: Scraping service token (required)")
	fmt.Println("   - Sign in to your scraping platform account")
	fmt.Println("   - Open Settings → Integrations → API tokens")
	fmt.Println("   - Create a token and copy it")
	fmt.Println()

	fmt.Println("🤖 STEP 2: Generation API key (optional)")
	fmt.Println("   - Needed only for scenario generation (--enrich)")
	fmt.Println("   - Create an API key in Google AI Studio")
	fmt.Println("   - https://aistudio.google.com/apikey")
	fmt.Println()

	fmt.Println("💾 STEP 3: Store them")
	fmt.Println("   reelscope auth login")
	fmt.Println()
	fmt.Println("   Or export them for CI / containers:")
	fmt.Println("   export REELSCOPE_SCRAPE_TOKEN=...")
	fmt.Println("   export REELSCOPE_GENERATION_KEY=...")
	fmt.Println()

	fmt.Println("⚠️  Tokens are billing credentials. This tool stores them in the")
	fmt.Println("   system keychain (or an encrypted file); never commit them.")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
}
