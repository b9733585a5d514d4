package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// ProbeTracker keeps track of probe progress across batches
type ProbeTracker struct {
	TotalProbed  int
	Covered      int
	Uncovered    int
	Failed       int
	CurrentBatch int
	BatchSize    int
	StartTime    time.Time
}

// NewProbeTracker creates a new probe tracker
func NewProbeTracker(batchSize int) *ProbeTracker {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ProbeTracker{
		BatchSize: batchSize,
		StartTime: time.Now(),
	}
}

// RecordCovered counts one tile with coverage
func (pt *ProbeTracker) RecordCovered() {
	pt.TotalProbed++
	pt.Covered++
	pt.CurrentBatch++
}

// RecordUncovered counts one tile without coverage
func (pt *ProbeTracker) RecordUncovered() {
	pt.TotalProbed++
	pt.Uncovered++
	pt.CurrentBatch++
}

// RecordFailed counts one tile whose probe exhausted its retries
func (pt *ProbeTracker) RecordFailed() {
	pt.TotalProbed++
	pt.Failed++
	pt.CurrentBatch++
}

// ResetBatch resets the current batch counter
func (pt *ProbeTracker) ResetBatch() {
	pt.CurrentBatch = 0
}

// GetBatchProgress returns a formatted progress bar for the current batch
func (pt *ProbeTracker) GetBatchProgress() string {
	const width = 20
	progress := float64(pt.CurrentBatch) / float64(pt.BatchSize)
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, pt.CurrentBatch, pt.BatchSize)
}

// GetElapsedTime returns the elapsed time since tracking started
func (pt *ProbeTracker) GetElapsedTime() time.Duration {
	return time.Since(pt.StartTime)
}

// GetProbeRate returns the average probe rate (tiles per second)
func (pt *ProbeTracker) GetProbeRate() float64 {
	elapsed := pt.GetElapsedTime().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(pt.TotalProbed) / elapsed
}

// PrintProgress prints the current progress status
func (pt *ProbeTracker) PrintProgress() {
	if quietMode {
		return
	}
	fmt.Printf("\r%s Total: %d (%d covered, %d failed) | Batch: %s",
		Green("[PROBED]"),
		pt.TotalProbed,
		pt.Covered,
		pt.Failed,
		pt.GetBatchProgress())
}

// PrintBatchStatus prints the current batch selection status
func (pt *ProbeTracker) PrintBatchStatus() {
	if quietMode {
		return
	}
	fmt.Printf("\n%s %s\n", Magenta("[SELECTING]"), Yellow(pt.GetBatchProgress()))
}

// GetProbedCount returns the total number of probed tiles
func (pt *ProbeTracker) GetProbedCount() int {
	return pt.TotalProbed
}

// SetProbedCount sets the total probed count (used on resume)
func (pt *ProbeTracker) SetProbedCount(count int) {
	pt.TotalProbed = count
}
