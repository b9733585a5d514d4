package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"tilecov/pkg/config"
	"tilecov/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Tilecov configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.tilecov.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values

Sensitive values like the access token will be masked for security.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = ".tilecov.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# Tilecov Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with TILECOV_
# For example: TILECOV_DB_PATH, TILECOV_CONCURRENCY
# The access token is read from MAPILLARY_ACCESS_TOKEN.

# Mapillary tile service
mapillary:
  # Client token from the Mapillary developer dashboard (required)
  # Prefer 'tilecov auth set' over putting the token in this file
  access_token: "YOUR_ACCESS_TOKEN"

  # Vector tile endpoint
  base_url: "https://tiles.mapillary.com"

  # Tileset and the layer that carries image coverage
  tileset: "mly1_public"
  layer: "image"

  # Per-request timeout
  request_timeout: 20s

# Request budget
rate_limit:
  # Requests per minute the API allows per token
  max_requests_per_minute: 50000

  # Fraction of the budget to actually use
  # Range: 0-1
  safety_factor: 0.85

  # Cap requests per second below the derived rate
  # 0 derives the rate from the budget above
  requests_per_second: 0

# Retry configuration
retry:
  # Maximum number of attempts per tile
  max_attempts: 8

  # Initial backoff duration
  backoff_base: 250ms

  # Maximum backoff duration
  backoff_cap: 5s

# Probe run configuration
probe:
  # Tile zoom level
  # Range: 0-22
  zoom: 14

  # Maximum tiles to probe per run
  tiles: 100

  # Tiles selected and committed per batch
  batch_size: 2000

  # Number of concurrent probes
  concurrency: 200

  # Keep a tile's previous verdict when a probe fails
  keep_coverage_on_error: true

# Occurrence catalogue database
database:
  # Path to the sqlite catalogue
  path: "data/plants.db"

  # Log individual queries (noisy, debug only)
  log_queries: false

# Prometheus metrics
metrics:
  enabled: false
  addr: "127.0.0.1:9091"

# Notifications
notifications:
  enabled: false
  on_complete: true
  on_error: true

  # Notification type: terminal, desktop, none
  notification_type: "terminal"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store your Mapillary token with 'tilecov auth set'")
	fmt.Println("2. Run 'tilecov config validate' to check the configuration")
	fmt.Println("3. Assign tiles with 'tilecov derive', then run 'tilecov probe'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Create a sanitized version for display
	displayCfg := *cfg

	// Mask the access token
	if displayCfg.Mapillary.AccessToken != "" {
		if len(displayCfg.Mapillary.AccessToken) > 8 {
			displayCfg.Mapillary.AccessToken = displayCfg.Mapillary.AccessToken[:4] + "..." + displayCfg.Mapillary.AccessToken[len(displayCfg.Mapillary.AccessToken)-4:]
		} else {
			displayCfg.Mapillary.AccessToken = "***"
		}
	}

	// Convert to YAML for display
	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TILECOV_*, MAPILLARY_ACCESS_TOKEN)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Check if config file is specified
	if configFile == "" {
		// Try to find config file in the standard locations
		possiblePaths := []string{
			".tilecov.yaml",
			".tilecov.yml",
			filepath.Join(os.Getenv("HOME"), ".config", "tilecov", "config.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "tilecov", "config.yml"),
			filepath.Join(os.Getenv("HOME"), ".tilecov.yaml"),
			filepath.Join(os.Getenv("HOME"), ".tilecov.yml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	// Try to load and validate configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	// Perform additional validation checks
	warnings := []string{}
	errors := []string{}

	// Check the access token
	if cfg.Mapillary.AccessToken == "" || cfg.Mapillary.AccessToken == "YOUR_ACCESS_TOKEN" {
		warnings = append(warnings, "Mapillary access token not configured (store one with 'tilecov auth set')")
	}

	// Check paths
	if dir := filepath.Dir(cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create database directory: %v", err))
		}
	}

	// Check logging file path
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	// Display results
	if len(errors) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Catalogue database: %s\n", cfg.Database.Path)
	fmt.Printf("  Zoom level: %d\n", cfg.Probe.Zoom)
	fmt.Printf("  Tiles per run: %d\n", cfg.Probe.Tiles)
	fmt.Printf("  Batch size: %d\n", cfg.Probe.BatchSize)
	fmt.Printf("  Concurrency: %d\n", cfg.Probe.Concurrency)
	fmt.Printf("  Request budget: %d requests/minute (safety %.2f)\n", cfg.RateLimit.MaxRequestsPerMinute, cfg.RateLimit.SafetyFactor)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
