package logger

// This file shows how to integrate the logger into the main application

/*
Example integration in main.go:

package main

import (
	"flag"
	"os"

	"tilecov/pkg/config"
	"tilecov/pkg/logger"
	"tilecov/pkg/ui"
	"tilecov/internal/prober"
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Initialize the global logger first, everything else logs through it
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}

	logger.Info("Tile coverage prober starting")
	logger.InfoWithFields("Configuration", map[string]interface{}{
		"zoom":        cfg.Probe.Zoom,
		"tiles":       cfg.Probe.Tiles,
		"batch_size":  cfg.Probe.BatchSize,
		"concurrency": cfg.Probe.Concurrency,
	})

	runner, err := prober.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize prober")
	}

	if err := runner.Run(ctx); err != nil {
		logger.WithError(err).Error("Probe run failed")
		os.Exit(1)
	}

	logger.Info("Probe run completed")
}

Example integration in the prober:

func (p *Prober) Probe(ctx context.Context, coord tiles.Coord) Outcome {
	log := logger.GetLogger().
		WithField("component", "prober").
		WithField("tile", coord.String())

	log.Debug("Probing tile")

	// ... fetch and decode ...

	log.WithField("covered", covered).Debug("Tile resolved")
}

Helper functions for recurring events:

	logger.LogProbe(14, 8702, 5673, true, nil)
	logger.LogBatchProgress(2, 2200, 4000)
	logger.LogRateLimit("tiles", 30)
*/
