package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// BatchStartMsg is sent when a new batch begins
type BatchStartMsg struct {
	Batch int
	Size  int
}

// ProbeCompleteMsg is sent when a tile probe succeeds
type ProbeCompleteMsg struct {
	Tile     string
	Covered  bool
	Features int
}

// ProbeErrorMsg is sent when a tile probe exhausts its retries
type ProbeErrorMsg struct {
	Tile  string
	Error error
}

// BatchCommitMsg is sent when a batch is committed to the catalogue
type BatchCommitMsg struct {
	Batch     int
	Covered   int
	Uncovered int
	Failed    int
}

// PendingMsg is sent to update the pending tile backlog
type PendingMsg struct {
	Pending int
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		// Regular UI update tick
		return m, tea.Batch(
			tickCmd(),
			m.spinner.Tick,
		)

	case BatchStartMsg:
		m.StartBatch(msg.Batch, msg.Size)
		m.AddLogMessage("INFO", fmt.Sprintf("Selected batch %d (%d tiles)", msg.Batch, msg.Size))
		return m, nil

	case ProbeCompleteMsg:
		m.RecordProbe(msg.Tile, msg.Covered, msg.Features)
		return m, nil

	case ProbeErrorMsg:
		m.RecordFailure(msg.Tile, msg.Error)
		m.AddLogMessage("ERROR", "Probe failed: "+msg.Tile+" - "+msg.Error.Error())
		return m, nil

	case BatchCommitMsg:
		m.RecordCommit(msg.Batch)
		m.AddLogMessage("SUCCESS", fmt.Sprintf("Committed batch %d (%d covered, %d uncovered, %d failed)",
			msg.Batch, msg.Covered, msg.Uncovered, msg.Failed))
		return m, nil

	case PendingMsg:
		m.SetPending(msg.Pending)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.isPaused = !m.isPaused
		if m.isPaused {
			m.AddLogMessage("WARN", "Probing paused by user")
		} else {
			m.AddLogMessage("INFO", "Probing resumed by user")
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		// Clear logs
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// Commands

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Helper functions for external use

// SendBatchStart creates a message announcing a new batch
func SendBatchStart(batch, size int) tea.Msg {
	return BatchStartMsg{Batch: batch, Size: size}
}

// SendProbeComplete creates a message for a probed tile
func SendProbeComplete(tile string, covered bool, features int) tea.Msg {
	return ProbeCompleteMsg{
		Tile:     tile,
		Covered:  covered,
		Features: features,
	}
}

// SendProbeError creates a message for a failed probe
func SendProbeError(tile string, err error) tea.Msg {
	return ProbeErrorMsg{Tile: tile, Error: err}
}

// SendBatchCommit creates a message for a committed batch
func SendBatchCommit(batch, covered, uncovered, failed int) tea.Msg {
	return BatchCommitMsg{
		Batch:     batch,
		Covered:   covered,
		Uncovered: uncovered,
		Failed:    failed,
	}
}

// SendPending creates a message updating the pending backlog
func SendPending(pending int) tea.Msg {
	return PendingMsg{Pending: pending}
}

// SendLog creates a log message
func SendLog(level, message string) tea.Msg {
	return LogMsg{Level: level, Message: message}
}
