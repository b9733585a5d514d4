package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay provides a clean, minimal progress display
type ProgressDisplay struct {
	mu          sync.Mutex
	zoom        int
	totalTiles  int
	probedCount int
	covered     int
	uncovered   int
	failed      int
	currentTile string
	startTime   time.Time
	lastUpdate  time.Time
	isDebug     bool
}

// NewProgressDisplay creates a new progress display. totalTiles is the
// pending tile count at run start; -1 means unknown.
func NewProgressDisplay(zoom, totalTiles int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		zoom:       zoom,
		totalTiles: totalTiles,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
		isDebug:    debug,
	}
}

// StartBatch indicates a new batch of tiles was selected
func (p *ProgressDisplay) StartBatch(batch, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isDebug {
		fmt.Printf("\n%s Batch %d: %d tiles selected\n", Magenta("→"), batch, size)
	}
}

// CompleteProbe records a tile that reached a verdict
func (p *ProgressDisplay) CompleteProbe(tile string, covered bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.probedCount++
	if covered {
		p.covered++
	} else {
		p.uncovered++
	}
	p.currentTile = tile
	p.lastUpdate = time.Now()

	if !p.isDebug {
		p.printProgress()
	} else {
		p.printDebugComplete(tile, covered)
	}
}

// FailProbe records a tile whose probe failed terminally
func (p *ProgressDisplay) FailProbe(tile string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.probedCount++
	p.failed++
	p.currentTile = tile
	p.lastUpdate = time.Now()

	if !p.isDebug {
		p.printProgress()
	} else {
		fmt.Printf("\n%s Failed: %s - %v\n", Red("✗"), tile, err)
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	// Calculate stats
	elapsed := time.Since(p.startTime)
	rate := float64(p.probedCount) / elapsed.Seconds()
	eta := p.calculateETA()

	// Build progress bar
	total := p.totalTiles
	if total <= 0 {
		total = p.probedCount
	}
	progress := float64(p.probedCount) / float64(total)
	if progress > 1 {
		progress = 1
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	// Format line
	line := fmt.Sprintf("\r%s [%s] %d/%d • %.0f/s • %d covered • %s",
		Cyan(fmt.Sprintf("z%d", p.zoom)),
		bar,
		p.probedCount,
		total,
		rate,
		p.covered,
		eta,
	)

	if p.currentTile != "" {
		line += fmt.Sprintf(" • %s", p.currentTile)
	}

	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}

	// Clear line and print
	fmt.Printf("\r%s\r%s", strings.Repeat(" ", 120), line)
}

// printDebugComplete prints detailed info in debug mode
func (p *ProgressDisplay) printDebugComplete(tile string, covered bool) {
	if covered {
		fmt.Printf("\n%s %s • covered\n", Green("✓"), tile)
	} else {
		fmt.Printf("\n%s %s • no coverage\n", Dim("○"), tile)
	}
}

// BatchCommitted indicates a batch of outcomes was persisted
func (p *ProgressDisplay) BatchCommitted(batch, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isDebug {
		fmt.Printf("\n%s Batch %d committed (%d outcomes)\n", Green("✓"), batch, count)
	}
}

// Complete marks the entire run as complete
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	fmt.Printf("\n\n%s Probed %d tiles at zoom %d\n",
		Green("✓"),
		p.probedCount,
		p.zoom,
	)

	// Summary stats
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(p.probedCount) / elapsed.Seconds()
	}
	fmt.Printf("  %s %d covered, %d uncovered in %s (%.0f tiles/s)\n",
		Dim("•"),
		p.covered,
		p.uncovered,
		p.formatDuration(elapsed),
		rate,
	)

	if p.failed > 0 {
		fmt.Printf("  %s %d probes failed\n",
			Dim("•"),
			p.failed,
		)
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.probedCount == 0 || p.totalTiles <= 0 {
		return "calculating..."
	}

	remaining := p.totalTiles - p.probedCount
	if remaining < 0 {
		remaining = 0
	}
	elapsed := time.Since(p.startTime)
	rate := float64(p.probedCount) / elapsed.Seconds()

	if rate == 0 {
		return "calculating..."
	}

	etaSeconds := float64(remaining) / rate
	eta := time.Duration(etaSeconds) * time.Second

	return p.formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func (p *ProgressDisplay) formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	} else {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// RateLimitWarning shows a rate limit warning
func (p *ProgressDisplay) RateLimitWarning(waitTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Printf("\n%s Rate limit reached. Waiting %s...\n",
		Yellow("⚠"),
		p.formatDuration(waitTime),
	)
}

// UpdateTotal updates the total tile count
func (p *ProgressDisplay) UpdateTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalTiles = total
}

// SetProbedCount sets the initial probed count (for resumed runs)
func (p *ProgressDisplay) SetProbedCount(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.probedCount = count
}
