package prober

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tilecov/pkg/checkpoint"
	"tilecov/pkg/config"
	errs "tilecov/pkg/errors"
	"tilecov/pkg/logger"
	"tilecov/pkg/mapillary"
	"tilecov/pkg/metrics"
	"tilecov/pkg/models"
	"tilecov/pkg/ratelimit"
	"tilecov/pkg/report"
	"tilecov/pkg/store"
	"tilecov/pkg/tiles"
	"tilecov/pkg/ui"
)

// keepReports caps how many run report files accumulate on disk
const keepReports = 20

// Runner orchestrates the coverage probe loop: select pending tiles,
// probe them concurrently, commit the batch, advance.
type Runner struct {
	client        *mapillary.Client
	prober        TileProber
	store         store.Store
	tracker       *ui.ProbeTracker
	progress      *ui.ProgressDisplay
	notifier      *ui.Notifier
	config        *config.Config
	logger        logger.Logger
	checkpointMgr *checkpoint.Manager
	report        *report.RunReport
	tui           ui.TUI
}

// New creates a new Runner instance
func New(cfg *config.Config) (*Runner, error) {
	log := logger.GetLogger()

	client := mapillary.NewClient(cfg.Mapillary, log)
	decoder := tiles.NewDecoder(cfg.Mapillary.Layer)
	pacer := ratelimit.NewPacerFromLimit(
		cfg.RateLimit.MaxRequestsPerMinute,
		cfg.RateLimit.SafetyFactor,
		cfg.RateLimit.RequestsPerSecond,
	)
	tileProber := NewProber(client, decoder, pacer, cfg.Retry, log)

	st, err := store.Open(cfg.Database, store.Options{
		KeepCoverageOnError: cfg.Probe.KeepCoverageOnError,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &Runner{
		client:   client,
		prober:   tileProber,
		store:    st,
		tracker:  ui.NewProbeTracker(cfg.Probe.BatchSize),
		notifier: ui.NewNotifier(),
		config:   cfg,
		logger:   log,
	}, nil
}

// SetTUI sets the terminal UI for the runner
func (r *Runner) SetTUI(tui ui.TUI) {
	r.tui = tui
}

// Close releases the underlying store
func (r *Runner) Close() error {
	return r.store.Close()
}

// Run executes one probe run: batches of pending tiles are selected,
// probed and committed until the backlog drains, the per-run tile cap
// is reached, or the context is cancelled. Cancellation finishes the
// in-flight batch commit, so no probed outcome is lost.
func (r *Runner) Run(ctx context.Context) error {
	zoom := r.config.Probe.Zoom

	if r.tui == nil {
		ui.PrintHighlight("\n[INITIATING COVERAGE PROBE]\n")
	} else {
		r.tui.LogInfo("Initiating coverage probe at zoom %d", zoom)
	}

	checkpointMgr, err := checkpoint.NewManager(fmt.Sprintf("z%d", zoom))
	if err != nil {
		r.logger.WithError(err).Error("Failed to create checkpoint manager")
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	r.checkpointMgr = checkpointMgr

	runID := uuid.NewString()
	state, err := checkpointMgr.Start(runID, zoom)
	if err != nil {
		r.logger.WithError(err).Error("Failed to persist run state")
		return fmt.Errorf("failed to persist run state: %w", err)
	}

	r.report = report.FromRunState(state)
	r.report.Settings = report.Settings{
		RequestsPerMinute: r.config.RateLimit.MaxRequestsPerMinute,
		SafetyFactor:      r.config.RateLimit.SafetyFactor,
		Concurrency:       r.config.Probe.Concurrency,
		BatchSize:         r.config.Probe.BatchSize,
	}

	r.logger.InfoWithFields("Starting coverage probe run", map[string]interface{}{
		"run_id": runID,
		"zoom":   zoom,
		"rate_per_second": ratelimit.EffectiveRate(
			r.config.RateLimit.MaxRequestsPerMinute,
			r.config.RateLimit.SafetyFactor,
			r.config.RateLimit.RequestsPerSecond,
		),
		"concurrency": r.config.Probe.Concurrency,
		"action":      "probe_start",
	})

	// A rejected token fails every tile in the run; check once up front.
	// Transient verify failures are only worth a warning.
	if err := r.client.VerifyToken(ctx); err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeNonRetryable {
			r.logger.WithError(err).Error("Access token rejected by tile service")
			if r.config.Notifications.Enabled && r.config.Notifications.OnError {
				r.notifier.SendError("PROBE ABORTED", "Access token rejected by tile service")
			}
			return fmt.Errorf("access token rejected: %w", err)
		}
		r.logger.WithError(err).Warn("Token verification inconclusive, continuing")
	}

	// Pending backlog for the progress display
	pending := -1
	if stats, err := r.store.Stats(ctx, zoom); err == nil {
		pending = int(stats.PendingTiles)
	}

	if r.tui == nil {
		if !ui.IsQuietMode() {
			debugMode := strings.ToLower(r.config.Logging.Level) == "debug"
			r.progress = ui.NewProgressDisplay(zoom, pending, debugMode)
		}
	} else {
		r.tui.UpdatePending(pending)
	}

	remaining := r.config.Probe.Tiles
	batchNum := 0
	interrupted := false

	for {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		// Pause gates between batches; in-flight tiles still finish
		for r.tui != nil && r.tui.IsPaused() && ctx.Err() == nil {
			time.Sleep(200 * time.Millisecond)
		}
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		limit := r.config.Probe.BatchSize
		if remaining > 0 && remaining < limit {
			limit = remaining
		}

		coords, err := r.store.SelectPending(ctx, zoom, limit)
		if err != nil {
			r.logger.WithError(err).Error("Failed to select pending tiles")
			if r.config.Notifications.Enabled && r.config.Notifications.OnError {
				r.notifier.SendError("PROBE FAILED", "Could not select pending tiles")
			}
			return fmt.Errorf("failed to select pending tiles: %w", err)
		}
		if len(coords) == 0 {
			r.logger.InfoWithFields("No pending tiles left", map[string]interface{}{
				"zoom": zoom,
			})
			break
		}

		batchNum++
		r.tracker.ResetBatch()
		if r.tui != nil {
			r.tui.StartBatch(batchNum, len(coords))
		} else if r.progress != nil {
			r.progress.StartBatch(batchNum, len(coords))
		} else {
			r.tracker.PrintBatchStatus()
		}

		r.logger.DebugWithFields("Probing batch", map[string]interface{}{
			"batch": batchNum,
			"tiles": len(coords),
		})

		outcomes := r.probeBatch(ctx, coords)
		if len(outcomes) == 0 {
			interrupted = true
			break
		}

		for i := range outcomes {
			outcomes[i].RunID = runID
		}

		covered, uncovered, failed := tally(outcomes)

		// Commits run outside the cancellation scope; outcomes already
		// probed must land even when the run is being stopped.
		commitStart := time.Now()
		if err := r.store.SaveBatch(context.WithoutCancel(ctx), zoom, outcomes); err != nil {
			r.logger.WithError(err).ErrorWithFields("Failed to commit outcome batch", map[string]interface{}{
				"batch": batchNum,
				"tiles": len(outcomes),
			})
			if r.config.Notifications.Enabled && r.config.Notifications.OnError {
				r.notifier.SendError("PROBE FAILED", "Outcome batch could not be committed")
			}
			return fmt.Errorf("failed to commit outcome batch: %w", err)
		}
		metrics.BatchCommitDuration.Observe(time.Since(commitStart).Seconds())

		if err := checkpointMgr.RecordBatch(state, len(coords), covered, uncovered, failed); err != nil {
			r.logger.WithError(err).Warn("Failed to update run state")
		}

		if r.tui != nil {
			r.tui.BatchCommitted(batchNum, covered, uncovered, failed)
		} else if r.progress != nil {
			r.progress.BatchCommitted(batchNum, len(outcomes))
		}

		r.logger.InfoWithFields("Batch committed", map[string]interface{}{
			"batch":     batchNum,
			"tiles":     len(outcomes),
			"covered":   covered,
			"uncovered": uncovered,
			"failed":    failed,
		})

		// A short batch means workers stopped early on cancellation
		if len(outcomes) < len(coords) {
			interrupted = true
			break
		}

		if remaining > 0 {
			remaining -= len(coords)
			if remaining <= 0 {
				r.logger.InfoWithFields("Per-run tile cap reached", map[string]interface{}{
					"cap": r.config.Probe.Tiles,
				})
				break
			}
		}
	}

	r.report.Interrupted = interrupted
	if !interrupted {
		if err := checkpointMgr.Complete(state); err != nil {
			r.logger.WithError(err).Warn("Failed to mark run state complete")
		}
		r.report.Completed = true
	}

	r.finishReport(state)

	r.logger.InfoWithFields("Coverage probe run finished", map[string]interface{}{
		"run_id":      runID,
		"processed":   state.Processed,
		"covered":     state.Covered,
		"uncovered":   state.Uncovered,
		"failed":      state.Failed,
		"batches":     state.BatchesCommitted,
		"interrupted": interrupted,
		"action":      "probe_complete",
	})

	if r.config.Notifications.Enabled && r.config.Notifications.OnComplete {
		r.notifier.SendSuccess("PROBE COMPLETE", r.report.Summary())
	}

	if r.tui == nil {
		if r.progress != nil {
			r.progress.Complete()
		} else {
			ui.PrintSuccess("\n[PROBE RUN COMPLETED]\n")
		}
	} else {
		r.tui.LogSuccess("Probe run finished: %s", r.report.Summary())
	}

	return nil
}

// probeBatch runs one batch through a worker pool, streaming outcomes
// into the display as they land
func (r *Runner) probeBatch(ctx context.Context, coords []tiles.Coord) []models.Outcome {
	workers := r.config.Probe.Concurrency
	if workers > len(coords) {
		workers = len(coords)
	}

	pool := NewWorkerPool(ctx, workers, r.prober, r.logger)
	pool.Start()

	outcomes := make([]models.Outcome, 0, len(coords))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for outcome := range pool.Results() {
			r.handleOutcome(outcome)
			outcomes = append(outcomes, outcome)
		}
	}()

	for _, coord := range coords {
		if err := pool.Submit(coord); err != nil {
			break
		}
	}

	pool.Stop()
	wg.Wait()

	return outcomes
}

// handleOutcome updates tracking, the report and the active display for
// one terminal outcome. Runs on the batch collector goroutine only.
func (r *Runner) handleOutcome(outcome models.Outcome) {
	tile := outcome.Coord.String()

	r.report.Requests += outcome.Attempts
	r.report.Retries += outcome.Attempts - 1
	r.report.CountStatus(metrics.StatusClass(outcome.HTTPStatus))

	if outcome.OK() {
		if outcome.Covered {
			r.tracker.RecordCovered()
		} else {
			r.tracker.RecordUncovered()
		}

		if r.tui != nil {
			r.tui.CompleteProbe(tile, outcome.Covered, outcome.Features)
		} else if r.progress != nil {
			r.progress.CompleteProbe(tile, outcome.Covered)
		} else {
			r.tracker.PrintProgress()
		}
		return
	}

	r.tracker.RecordFailed()
	r.report.AddErrorSample(tile, outcome.Detail)

	if r.tui != nil {
		r.tui.FailProbe(tile, stderrors.New(outcome.Detail))
	} else if r.progress != nil {
		r.progress.FailProbe(tile, stderrors.New(outcome.Detail))
	} else {
		ui.PrintError(fmt.Sprintf("\nProbe failed for %s", tile), outcome.Detail)
	}

	r.logger.ErrorWithFields("Tile probe exhausted retries", map[string]interface{}{
		"tile":     tile,
		"status":   outcome.HTTPStatus,
		"attempts": outcome.Attempts,
		"error":    outcome.Detail,
	})
}

// finishReport finalizes the run report and writes it next to the run
// state files
func (r *Runner) finishReport(state *checkpoint.RunState) {
	// Carry the final tallies accumulated across batches
	r.report.Selected = state.Selected
	r.report.Probed = state.Processed
	r.report.Covered = state.Covered
	r.report.Uncovered = state.Uncovered
	r.report.Failed = state.Failed
	r.report.BatchesCommitted = state.BatchesCommitted
	r.report.Finalize()

	dataDir, err := checkpoint.DataDir()
	if err != nil {
		r.logger.WithError(err).Warn("Failed to locate data directory for report")
		return
	}

	dir := filepath.Join(dataDir, "reports")
	path, err := r.report.Save(dir)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to save run report")
		return
	}
	if err := report.Prune(dir, keepReports); err != nil {
		r.logger.WithError(err).Warn("Failed to prune old run reports")
	}

	if r.tui == nil {
		ui.PrintInfo("Report", path)
	} else {
		r.tui.LogInfo("Report written to %s", path)
	}
}

func tally(outcomes []models.Outcome) (covered, uncovered, failed int) {
	for _, o := range outcomes {
		switch {
		case !o.OK():
			failed++
		case o.Covered:
			covered++
		default:
			uncovered++
		}
	}
	return covered, uncovered, failed
}
