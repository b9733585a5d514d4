package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"tilecov/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	progressOnly  bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tilecov",
	Short: "A Mapillary tile coverage prober for occurrence catalogues",
	Long: `Tilecov checks which occurrence tiles in a local catalogue have
Mapillary street-level imagery.

It selects tiles without a coverage verdict, fetches the matching vector
tiles from the Mapillary tiles API under a strict request budget, decodes
them, and records a covered or uncovered verdict for each tile. Verdicts
are committed in atomic batches so an interrupted run never leaves the
catalogue half-written.

Features:
  - Secure access token storage using system keychain
  - Concurrent probing with configurable limits
  - Smart rate limiting below the API request budget
  - Progress tracking with live terminal UI
  - Desktop notifications for run events
  - Automatic retry with exponential backoff
  - Atomic batch persistence with run checkpoints

For more information and examples, visit: https://github.com/yourusername/tilecov`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Progress mode is default for probe runs unless verbose is
		// specified; informational commands stay chatty
		if cmd.Name() == "probe" && !verbose && !quiet {
			progressOnly = true
		}

		if noColor {
			ui.SetColorEnabled(false)
		}

		// Set quiet mode if requested or log level is error
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}

		// Set progress-only mode
		if progressOnly {
			ui.SetProgressOnlyMode(true)
			// Also set log level to error to suppress logs
			logLevel = "error"
		}

		// Don't show logo for certain commands
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .tilecov.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&progressOnly, "progress", "p", false, "show only progress and essential info")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show all output (logo, logs, progress)")

	// Version template
	rootCmd.SetVersionTemplate(`Tilecov {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
