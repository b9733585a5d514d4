package prober

import (
	"context"
	"fmt"
	"sync"

	"tilecov/pkg/logger"
	"tilecov/pkg/models"
	"tilecov/pkg/tiles"
)

// TileProber probes one tile to a terminal outcome
type TileProber interface {
	Probe(ctx context.Context, coord tiles.Coord) models.Outcome
}

// WorkerPool manages concurrent probe workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan tiles.Coord
	resultQueue chan models.Outcome
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	prober      TileProber
	logger      logger.Logger
}

// NewWorkerPool creates a new probe worker pool. Cancelling the parent
// context aborts in-flight fetches and stops workers from picking up
// queued tiles.
func NewWorkerPool(parent context.Context, numWorkers int, prober TileProber, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan tiles.Coord, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan models.Outcome, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		prober:      prober,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("Stopping worker pool")

	// Close job queue to signal no more jobs will be added
	close(wp.jobQueue)

	// Wait for all workers to finish processing remaining jobs
	wp.wg.Wait()

	// Close result queue
	close(wp.resultQueue)

	// Cancel context
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a tile to the probe queue
func (wp *WorkerPool) Submit(coord tiles.Coord) error {
	select {
	case wp.jobQueue <- coord:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming probe outcomes
func (wp *WorkerPool) Results() <-chan models.Outcome {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for coord := range wp.jobQueue {
		// Check if context is cancelled
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		outcome := wp.prober.Probe(wp.ctx, coord)

		// A probed tile cost a request; its outcome is delivered even
		// when cancellation lands first. Only a full result queue with
		// no consumer left gives up.
		select {
		case wp.resultQueue <- outcome:
		default:
			select {
			case wp.resultQueue <- outcome:
			case <-wp.ctx.Done():
				wp.logger.DebugWithFields("Worker stopping - context cancelled while sending result", map[string]interface{}{
					"worker_id": id,
				})
				return
			}
		}
	}
}

// GetQueueSize returns the current number of tiles in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of active workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}

// RunBatch probes a batch of tiles through a fresh pool and returns the
// collected outcomes. On cancellation the slice may be shorter than the
// input; unprocessed tiles keep their NULL verdict and are re-selected
// by the next run.
func RunBatch(ctx context.Context, prober TileProber, workers int, coords []tiles.Coord, log logger.Logger) []models.Outcome {
	if len(coords) == 0 {
		return nil
	}
	if workers > len(coords) {
		workers = len(coords)
	}

	pool := NewWorkerPool(ctx, workers, prober, log)
	pool.Start()

	outcomes := make([]models.Outcome, 0, len(coords))
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for outcome := range pool.Results() {
			outcomes = append(outcomes, outcome)
		}
	}()

	for _, coord := range coords {
		if err := pool.Submit(coord); err != nil {
			break
		}
	}

	pool.Stop()
	collectorWg.Wait()

	return outcomes
}
