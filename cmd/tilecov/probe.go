package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"tilecov/internal/prober"
	"tilecov/pkg/auth"
	"tilecov/pkg/config"
	"tilecov/pkg/logger"
	"tilecov/pkg/metrics"
	"tilecov/pkg/ratelimit"
	"tilecov/pkg/ui"
	"tilecov/pkg/ui/tui"
)

var (
	// Probe command flags
	zoomLevel      int
	tileCap        int
	batchSize      int
	concurrent     int
	rateLimit      int
	overrideRPS    float64
	maxRetries     int
	requestTimeout int
	dbPath         string
	accessToken    string
	accountName    string
	metricsAddr    string
	keepOnError    bool
	useTUI         bool
)

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe pending occurrence tiles for imagery coverage",
	Long: `Probe occurrence tiles that have no coverage verdict yet.

This command requires a valid Mapillary access token configured through:
  - Stored credentials (use 'tilecov auth set' to store)
  - The MAPILLARY_ACCESS_TOKEN environment variable
  - Configuration file

Each selected tile is fetched from the Mapillary vector tile API, decoded,
and recorded as covered or uncovered. Verdicts are committed in batches;
a batch either commits completely or not at all, so the run can be
interrupted and resumed safely.`,
	Example: `  # Probe with default settings
  tilecov probe

  # Probe a larger slice of the backlog with more workers
  tilecov probe --tiles 5000 --concurrent 300

  # Use a specific stored token
  tilecov probe --account fieldwork

  # Lower the request budget and keep old verdicts on probe errors
  tilecov probe --rate-limit 10000 --keep-coverage-on-error

  # Watch the run in the interactive terminal UI
  tilecov probe --tui

  # Expose Prometheus metrics while probing
  tilecov probe --metrics-addr 127.0.0.1:9091`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runProbe(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	// Local flags for probe command
	probeCmd.Flags().IntVar(&zoomLevel, "zoom", 14, "tile zoom level to probe")
	probeCmd.Flags().IntVar(&tileCap, "tiles", 100, "maximum tiles to probe in this run")
	probeCmd.Flags().IntVar(&batchSize, "batch-size", 2000, "tiles selected and committed per batch")
	probeCmd.Flags().IntVar(&concurrent, "concurrent", 200, "number of concurrent probes")
	probeCmd.Flags().IntVar(&rateLimit, "rate-limit", 50000, "request budget in requests per minute")
	probeCmd.Flags().Float64Var(&overrideRPS, "rps", 0, "cap requests per second below the derived rate")
	probeCmd.Flags().IntVar(&maxRetries, "max-retries", 8, "maximum number of attempts per tile")
	probeCmd.Flags().IntVar(&requestTimeout, "timeout", 20, "request timeout in seconds")
	probeCmd.Flags().StringVar(&dbPath, "db", "", "path to the occurrence catalogue database")
	probeCmd.Flags().StringVar(&accessToken, "token", "", "Mapillary access token")
	probeCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored token")
	probeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	probeCmd.Flags().BoolVar(&keepOnError, "keep-coverage-on-error", true, "keep a tile's previous verdict when a probe fails")
	probeCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

func runProbe(cmd *cobra.Command, args []string) {
	// Build flags map from command line. Only flags the user actually set
	// are merged, so config file values survive unless overridden.
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("zoom") {
		flags["zoom"] = zoomLevel
	}
	if cmd.Flags().Changed("tiles") {
		flags["tiles"] = tileCap
	}
	if cmd.Flags().Changed("batch-size") {
		flags["batch-size"] = batchSize
	}
	if cmd.Flags().Changed("concurrent") {
		flags["concurrency"] = concurrent
	}
	if cmd.Flags().Changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if cmd.Flags().Changed("rps") {
		flags["rps"] = overrideRPS
	}
	if cmd.Flags().Changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if cmd.Flags().Changed("timeout") {
		flags["timeout"] = time.Duration(requestTimeout) * time.Second
	}
	if cmd.Flags().Changed("db") {
		flags["db"] = dbPath
	}
	if cmd.Flags().Changed("token") {
		flags["access-token"] = accessToken
	}
	if cmd.Flags().Changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	if cmd.Flags().Changed("keep-coverage-on-error") {
		flags["keep-coverage-on-error"] = keepOnError
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications-enabled"] = notifications
	}
	// Pass log level to config
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Initialize logger
	logger.Initialize(&cfg.Logging)
	logger.WithField("version", version).Info("Tilecov starting")

	// Handle credentials
	credManager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var cred *auth.Credential

	// Try to get a token from the various sources
	if accountName != "" {
		// Use specific stored token
		cred, err = credManager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found", accountName)
			ui.PrintInfo("Stored tokens", "Use 'tilecov auth show' to list stored tokens")
			os.Exit(1)
		}
	} else if cfg.Mapillary.AccessToken != "" && cfg.Mapillary.AccessToken != "YOUR_ACCESS_TOKEN" {
		// Token from flag, environment or config file
		logger.Info("Using access token from configuration")
	} else {
		// Try the default stored token
		cred, err = credManager.RetrieveDefault()
		if err != nil {
			// No token found anywhere
			logger.Error("No access token found")
			ui.PrintError("No Mapillary access token found", "")
			fmt.Println("\nTo store a token securely, run:")
			fmt.Println("  tilecov auth set")
			fmt.Println("\nYou can also set an environment variable:")
			fmt.Println("  export MAPILLARY_ACCESS_TOKEN='MLY|...'")
			os.Exit(1)
		}
	}

	// If we got a stored credential, update config
	if cred != nil {
		cfg.Mapillary.AccessToken = cred.AccessToken
		logger.WithField("account", cred.Name).Info("Using stored access token")
		if !useTUI {
			ui.PrintInfo("Using account", cred.Name)
		}
	}

	if !auth.ValidTokenFormat(cfg.Mapillary.AccessToken) {
		ui.PrintWarning("Access token does not look like a Mapillary token (expected MLY|...)")
	}

	if !useTUI {
		ui.PrintInfo("Catalogue", cfg.Database.Path)
	}

	// Expose Prometheus metrics if requested
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				logger.WithError(err).WithField("addr", cfg.Metrics.Addr).Error("Metrics server failed")
			}
		}()
		logger.WithField("addr", cfg.Metrics.Addr).Info("Serving Prometheus metrics")
	}

	// Stop cleanly on interrupt; in-flight batches finish or roll back whole
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("zoom", cfg.Probe.Zoom).Info("Starting probe run")

	if useTUI {
		// Create TUI
		terminal := tui.NewTUI(cfg.Probe.Zoom, ratelimit.EffectiveRate(
			cfg.RateLimit.MaxRequestsPerMinute,
			cfg.RateLimit.SafetyFactor,
			cfg.RateLimit.RequestsPerSecond,
		))

		// Run the prober in a goroutine
		runnerDone := make(chan error)
		go func() {
			r, err := prober.New(cfg)
			if err != nil {
				runnerDone <- err
				return
			}
			defer r.Close()

			// Set the TUI on the runner
			r.SetTUI(terminal)

			runnerDone <- r.Run(ctx)
		}()

		// Run TUI in main thread
		tuiDone := make(chan error)
		go func() {
			tuiDone <- terminal.Start()
		}()

		// Wait for either to finish
		select {
		case err := <-runnerDone:
			terminal.Stop()
			<-tuiDone // Wait for TUI to finish
			if err != nil {
				logger.WithError(err).Error("Probe run failed")
				os.Exit(1)
			}
		case err := <-tuiDone:
			if err != nil {
				logger.WithError(err).Error("Terminal UI failed")
				os.Exit(1)
			}
			// TUI quit by user; cancel the run and wait for it to wind down
			stop()
			if err := <-runnerDone; err != nil {
				logger.WithError(err).Error("Probe run failed")
				os.Exit(1)
			}
		}

		logger.Info("Probe run completed")
	} else {
		// Original non-TUI flow
		r, err := prober.New(cfg)
		if err != nil {
			ui.PrintError("Failed to initialize prober", err.Error())
			os.Exit(1)
		}
		defer r.Close()

		if err := r.Run(ctx); err != nil {
			logger.WithError(err).Error("Probe run failed")
			ui.PrintError("PROBE FAILED", err.Error())
			os.Exit(1)
		}

		logger.Info("Probe run completed")
	}
}
