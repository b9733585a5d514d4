package auth

import (
	"fmt"
	"strings"
)

// ShowTokenGuide displays step-by-step instructions for getting a Mapillary token
func ShowTokenGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("🔑 MAPILLARY ACCESS TOKEN GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool needs a Mapillary client token to request vector tiles.")
	fmt.Println("Follow these steps to create one:")
	fmt.Println()

	fmt.Println("🌐 STEP 1: Sign in to Mapillary")
	fmt.Println("   - Go to https://www.mapillary.com")
	fmt.Println("   - Log in or create a free account")
	fmt.Println()

	fmt.Println("🛠  STEP 2: Open the developer dashboard")
	fmt.Println("   - Go to https://www.mapillary.com/dashboard/developers")
	fmt.Println("   - Click 'Register Application'")
	fmt.Println("   - Any name works; the callback URL can be left empty")
	fmt.Println()

	fmt.Println("📋 STEP 3: Copy the client token")
	fmt.Println("   - After registering, the application row shows a 'Client Token'")
	fmt.Println("   - It looks like: MLY|1234567890|abcdef0123456789abcdef0123456789")
	fmt.Println("   - Copy the whole string including the MLY| prefix")
	fmt.Println()

	fmt.Println("💾 STEP 4: Store it")
	fmt.Println("   - Run: tilecov auth set")
	fmt.Println("   - Or export it: export MAPILLARY_ACCESS_TOKEN='MLY|...'")
	fmt.Println()

	fmt.Println("💡 TIPS:")
	fmt.Println("   • The client token only grants read access to public data")
	fmt.Println("   • Tile requests share a rate limit of 50,000 requests/minute per token")
	fmt.Println("   • Tokens do not expire, but you can revoke them from the dashboard")
	fmt.Println()

	fmt.Println("⚠️  SECURITY:")
	fmt.Println("   • Never commit the token to version control")
	fmt.Println("   • This tool stores it in the system keychain or an encrypted file")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickTokenGuide shows a condensed version for experienced users
func ShowQuickTokenGuide() {
	fmt.Println("\n🔑 Quick Guide: mapillary.com/dashboard/developers → Register Application → copy Client Token")
	fmt.Println("   Then: tilecov auth set  (or export MAPILLARY_ACCESS_TOKEN='MLY|...')")
}
