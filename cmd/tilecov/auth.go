package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"tilecov/pkg/auth"
	"tilecov/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Mapillary access tokens",
	Long: `Manage stored Mapillary access tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your tokens or config files!`,
}

// setCmd represents the auth set command
var setCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Store a Mapillary access token securely",
	Long: `Store a Mapillary client token securely in the system keychain or an
encrypted file.

You will be prompted for:
  - A name for the token (optional, defaults to "` + auth.DefaultName + `")
  - The client token itself (hidden as you type)

To get a token:
1. Sign in at https://www.mapillary.com
2. Open https://www.mapillary.com/dashboard/developers
3. Register an application and copy its Client Token`,
	Example: `  # Interactive token entry
  tilecov auth set

  # Store under a specific name
  tilecov auth set fieldwork`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthSet,
}

// showCredCmd represents the auth show command
var showCredCmd = &cobra.Command{
	Use:   "show",
	Short: "List all stored tokens",
	Long:  `List all stored Mapillary access tokens with the token values masked.`,
	Run:   runAuthShow,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove stored tokens",
	Long: `Remove stored Mapillary access tokens.

If no name is provided, you will be shown a list of stored tokens to
choose from. You can also remove all tokens at once.`,
	Example: `  # Interactive removal
  tilecov auth remove

  # Remove a specific token
  tilecov auth remove fieldwork`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setCmd)
	authCmd.AddCommand(showCredCmd)
	authCmd.AddCommand(removeCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	}

	// Interactive prompts
	reader := bufio.NewReader(os.Stdin)

	// Show the token guide first
	auth.ShowTokenGuide()

	// Ask if ready to continue
	fmt.Print("Ready to enter your token? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'tilecov auth set' when you're ready.")
		return
	}

	fmt.Println() // Add spacing

	if name == "" {
		fmt.Printf("🏷  Token name (press Enter for %q): ", auth.DefaultName)
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read token name", err.Error())
			os.Exit(1)
		}
		name = strings.TrimSpace(input)
		if name == "" {
			name = auth.DefaultName
		}
	}

	// Check if a token with this name already exists
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\n⚠️  Token '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\n🔐 Enter your client token (it will be hidden as you type):")
	fmt.Println()

	// Get the token with validation
	var token string
	for {
		fmt.Print("Client token: ")
		token, err = readHidden()
		if err != nil {
			ui.PrintError("Failed to read token", err.Error())
			os.Exit(1)
		}
		token = strings.TrimSpace(token)

		if !auth.ValidTokenFormat(token) {
			fmt.Println("\n❌ That doesn't look like a Mapillary client token.")
			fmt.Println("   It should start with MLY| and contain two | separators.")
			fmt.Println("   Example: MLY|1234567890|abcdef0123456789abcdef0123456789")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	// Show what we're about to do
	masked := "********"
	if len(token) > 12 {
		masked = token[:8] + "..." + token[len(token)-4:]
	}
	fmt.Println("\n📋 Summary:")
	fmt.Printf("   Name: %s\n", name)
	fmt.Printf("   Token: %s (hidden)\n", masked)

	// Store the credential
	cred := &auth.Credential{
		Name:         name,
		AccessToken:  token,
		LastModified: time.Now(),
	}

	fmt.Println("\n💾 Storing token securely...")
	if err := manager.Store(cred); err != nil {
		ui.PrintError("Failed to store token", err.Error())
		os.Exit(1)
	}

	fmt.Println("\n🎉 Token stored successfully!")
	ui.PrintSuccess(fmt.Sprintf("Token saved: %s", name))

	// Show where the token is stored
	fmt.Println("\n🔒 Security Information:")
	fmt.Println("   Your token is stored in:")
	if auth.IsKeyringAvailable() {
		fmt.Println("   • System keychain (primary)")
	}
	fmt.Println("   • Encrypted file (backup)")

	// Show how to use
	fmt.Println("\n📖 Quick Start Guide:")
	fmt.Println("   Probe pending occurrence tiles:")
	fmt.Printf("   $ tilecov probe\n")
	fmt.Println("\n   Use this specific token:")
	fmt.Printf("   $ tilecov probe --account %s\n", name)
	fmt.Println("\n   Show more options:")
	fmt.Printf("   $ tilecov probe --help\n")
	fmt.Println("\n⚠️  Never share your tokens or config files!")
}

func runAuthShow(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	creds, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list tokens", err.Error())
		os.Exit(1)
	}

	if len(creds) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'tilecov auth set' to add one")
		auth.ShowQuickTokenGuide()
		return
	}

	ui.PrintHighlight("Stored Tokens")
	fmt.Println()

	for i, cred := range creds {
		sanitized := auth.SanitizeCredential(cred)
		fmt.Printf("%d. Name: %s\n", i+1, sanitized.Name)
		fmt.Printf("   Token: %s\n", sanitized.AccessToken)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runAuthRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		// List tokens and ask which to remove
		creds, err := manager.List()
		if err != nil || len(creds) == 0 {
			ui.PrintError("No stored tokens found", "")
			return
		}

		if len(creds) == 1 {
			// Only one token, confirm deletion
			cred := creds[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove token '%s'? (y/N): ", cred.Name)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(cred.Name); err != nil {
				ui.PrintError("Failed to remove token", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Token removed: " + cred.Name)
			return
		}

		// Multiple tokens, show menu
		fmt.Println("Select token to remove:")
		for i, cred := range creds {
			fmt.Printf("  %d. %s\n", i+1, cred.Name)
		}
		fmt.Printf("  %d. Remove all tokens\n", len(creds)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice == 0 {
			return
		} else if choice == len(creds)+1 {
			// Remove all
			fmt.Print("Remove ALL tokens? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all tokens", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("All tokens removed")
			return
		} else if choice > 0 && choice <= len(creds) {
			cred := creds[choice-1]
			if err := manager.Delete(cred.Name); err != nil {
				ui.PrintError("Failed to remove token", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Token removed: " + cred.Name)
			return
		} else {
			ui.PrintError("Invalid choice", "")
			os.Exit(1)
		}
	}

	// Name provided as argument
	name := args[0]
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove token", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Token removed: " + name)
}

// readHidden reads a token from stdin without echoing
func readHidden() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		token, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after hidden input
		if err == nil {
			return string(token), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
