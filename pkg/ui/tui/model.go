package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TileOutcome represents one probed tile
type TileOutcome struct {
	Tile     string
	Covered  bool
	Features int
	Failed   bool
	Error    error
	Time     time.Time
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner  spinner.Model
	batchBar progress.Model

	// Run parameters
	zoom       int
	targetRate float64

	// Batch state
	currentBatch     int
	batchSize        int
	batchProbed      int
	batchesCommitted int

	// Session tallies
	probed           int
	covered          int
	uncovered        int
	failed           int
	pending          int
	sessionStartTime time.Time

	// Recent outcomes, newest last
	recent    []TileOutcome
	maxRecent int

	// UI state
	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	// Mutex for thread safety
	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel(zoom int, targetRate float64) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	b := progress.New(progress.WithDefaultGradient())
	b.Width = 40

	return Model{
		spinner:          s,
		batchBar:         b,
		zoom:             zoom,
		targetRate:       targetRate,
		pending:          -1,
		sessionStartTime: time.Now(),
		recent:           []TileOutcome{},
		maxRecent:        8,
		logMessages:      []LogMessage{},
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// StartBatch resets batch progress for a new batch
func (m *Model) StartBatch(batch, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentBatch = batch
	m.batchSize = size
	m.batchProbed = 0
}

// RecordProbe records a successfully probed tile
func (m *Model) RecordProbe(tile string, covered bool, features int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probed++
	m.batchProbed++
	if covered {
		m.covered++
	} else {
		m.uncovered++
	}
	if m.pending > 0 {
		m.pending--
	}

	m.addRecent(TileOutcome{
		Tile:     tile,
		Covered:  covered,
		Features: features,
		Time:     time.Now(),
	})
}

// RecordFailure records a tile whose probe exhausted its retries
func (m *Model) RecordFailure(tile string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probed++
	m.batchProbed++
	m.failed++
	if m.pending > 0 {
		m.pending--
	}

	m.addRecent(TileOutcome{
		Tile:   tile,
		Failed: true,
		Error:  err,
		Time:   time.Now(),
	})
}

// RecordCommit records a committed batch
func (m *Model) RecordCommit(batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchesCommitted = batch
}

// SetPending updates the pending tile backlog
func (m *Model) SetPending(pending int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = pending
}

// addRecent appends an outcome, trimming to the last maxRecent. Callers
// hold the lock.
func (m *Model) addRecent(outcome TileOutcome) {
	m.recent = append(m.recent, outcome)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// GetRecentOutcomes returns the most recent tile outcomes, newest last
func (m *Model) GetRecentOutcomes() []TileOutcome {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := make([]TileOutcome, len(m.recent))
	copy(recent, m.recent)
	return recent
}

// ProbeRate returns the observed probe rate in tiles per second
func (m *Model) ProbeRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.probeRateLocked()
}

func (m *Model) probeRateLocked() float64 {
	elapsed := time.Since(m.sessionStartTime).Seconds()
	if elapsed <= 0 || m.probed == 0 {
		return 0
	}
	return float64(m.probed) / elapsed
}

// GetProbeStats returns the observed rate and the backlog ETA
func (m *Model) GetProbeStats() (rate float64, eta time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rate = m.probeRateLocked()
	if rate > 0 && m.pending > 0 {
		eta = time.Duration(float64(m.pending)/rate) * time.Second
	}
	return
}

// FormatRate formats a probe rate in tiles per second
func FormatRate(tilesPerSecond float64) string {
	if tilesPerSecond >= 100 {
		return fmt.Sprintf("%.0f tiles/s", tilesPerSecond)
	}
	return fmt.Sprintf("%.1f tiles/s", tilesPerSecond)
}

// FormatCount formats a count with thousands separators
func FormatCount(n int) string {
	if n < 0 {
		return "?"
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	s := fmt.Sprintf("%d", n)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
