// Package logger provides a structured logging interface for the tile
// coverage prober.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - File output alongside the console
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "tilecov/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "logs/tilecov.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Probe run started")
//	logger.WithField("tile", "14/8702/5673").Debug("Probing tile")
//	logger.WithError(err).Error("Failed to fetch tile")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "prober").
//	    WithField("run_id", runID)
//
//	// Use structured logging
//	log.InfoWithFields("Batch committed", map[string]interface{}{
//	    "batch":    3,
//	    "tiles":    2000,
//	    "duration": time.Second * 5,
//	})
//
// The logger supports the following configuration options:
// - Level: Log level (debug, info, warn, error, fatal)
// - File: Path to log file (empty for console only)
package logger
