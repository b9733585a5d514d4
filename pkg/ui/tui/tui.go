package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI instance. targetRate is the configured
// request ceiling in tiles per second, shown by the pacer panel.
func NewTUI(zoom int, targetRate float64) *TUI {
	model := NewModel(zoom, targetRate)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start starts the TUI
func (t *TUI) Start() error {
	go func() {
		// Send initial tick to start the spinner
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// StartBatch notifies the TUI that a new batch has been selected
func (t *TUI) StartBatch(batch, size int) {
	t.Send(SendBatchStart(batch, size))
}

// CompleteProbe notifies the TUI that a tile probe finished
func (t *TUI) CompleteProbe(tile string, covered bool, features int) {
	t.Send(SendProbeComplete(tile, covered, features))
}

// FailProbe notifies the TUI that a tile probe exhausted its retries
func (t *TUI) FailProbe(tile string, err error) {
	t.Send(SendProbeError(tile, err))
}

// BatchCommitted notifies the TUI that a batch reached the catalogue
func (t *TUI) BatchCommitted(batch, covered, uncovered, failed int) {
	t.Send(SendBatchCommit(batch, covered, uncovered, failed))
}

// UpdatePending updates the pending tile backlog
func (t *TUI) UpdatePending(pending int) {
	t.Send(SendPending(pending))
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	t.Send(SendLog(level, message))
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// IsPaused returns whether probing is paused
func (t *TUI) IsPaused() bool {
	t.model.mu.RLock()
	defer t.model.mu.RUnlock()
	return t.model.isPaused
}
