package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"tilecov/pkg/logger"
)

// RunState is the persisted progress of one probe run. It is written
// after every committed batch so an interrupted run leaves an accurate
// record behind.
type RunState struct {
	RunID            string    `json:"run_id"`
	Zoom             int       `json:"zoom"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Selected         int       `json:"selected"`
	Processed        int       `json:"processed"`
	Covered          int       `json:"covered"`
	Uncovered        int       `json:"uncovered"`
	Failed           int       `json:"failed"`
	BatchesCommitted int       `json:"batches_committed"`
	Completed        bool      `json:"completed"`
	Version          int       `json:"version"`
}

// Manager handles run state persistence
type Manager struct {
	statePath string
	logger    logger.Logger
}

// NewManager creates a checkpoint manager for the named catalogue
func NewManager(name string) (*Manager, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	// Create checkpoints directory if it doesn't exist
	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	statePath := filepath.Join(checkpointsDir, fmt.Sprintf("%s.checkpoint.json", name))

	return &Manager{
		statePath: statePath,
		logger:    logger.GetLogger(),
	}, nil
}

// Start creates and persists a fresh run state
func (m *Manager) Start(runID string, zoom int) (*RunState, error) {
	state := &RunState{
		RunID:     runID,
		Zoom:      zoom,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Version:   1,
	}

	if err := m.Save(state); err != nil {
		return nil, fmt.Errorf("failed to save initial run state: %w", err)
	}

	m.logger.InfoWithFields("Run state created", map[string]interface{}{
		"run_id": runID,
		"zoom":   zoom,
		"path":   m.statePath,
	})

	return state, nil
}

// Load loads an existing run state
func (m *Manager) Load() (*RunState, error) {
	file, err := os.Open(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No run state exists
		}
		return nil, fmt.Errorf("failed to open run state file: %w", err)
	}
	defer file.Close()

	var state RunState
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode run state: %w", err)
	}

	m.logger.DebugWithFields("Run state loaded", map[string]interface{}{
		"run_id":     state.RunID,
		"processed":  state.Processed,
		"updated_at": state.UpdatedAt,
	})

	return &state, nil
}

// Save saves the run state to disk atomically
func (m *Manager) Save(state *RunState) error {
	state.UpdatedAt = time.Now()

	// Create temporary file
	tempPath := m.statePath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary run state file: %w", err)
	}

	// Write run state data
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run state: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync run state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close run state file: %w", err)
	}

	// Atomically replace the old run state file
	if err := os.Rename(tempPath, m.statePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace run state file: %w", err)
	}

	m.logger.DebugWithFields("Run state saved", map[string]interface{}{
		"run_id":    state.RunID,
		"processed": state.Processed,
		"batches":   state.BatchesCommitted,
	})

	return nil
}

// Delete removes the run state file
func (m *Manager) Delete() error {
	if err := os.Remove(m.statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run state: %w", err)
	}

	m.logger.Info("Run state deleted")
	return nil
}

// Exists checks if a run state file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.statePath)
	return err == nil
}

// RecordBatch folds one committed batch into the run state and saves it
func (m *Manager) RecordBatch(state *RunState, selected, covered, uncovered, failed int) error {
	state.Selected += selected
	state.Covered += covered
	state.Uncovered += uncovered
	state.Failed += failed
	state.Processed += covered + uncovered + failed
	state.BatchesCommitted++
	return m.Save(state)
}

// Complete marks the run finished and saves the final state
func (m *Manager) Complete(state *RunState) error {
	state.Completed = true
	return m.Save(state)
}

// Info returns a summary of the persisted run state
func (m *Manager) Info() (map[string]interface{}, error) {
	state, err := m.Load()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_id":     state.RunID,
		"zoom":       state.Zoom,
		"processed":  state.Processed,
		"covered":    state.Covered,
		"uncovered":  state.Uncovered,
		"failed":     state.Failed,
		"batches":    state.BatchesCommitted,
		"completed":  state.Completed,
		"started_at": state.StartedAt,
		"updated_at": state.UpdatedAt,
		"age":        time.Since(state.UpdatedAt),
	}, nil
}

// Backup copies the current run state aside before it gets overwritten
func (m *Manager) Backup() error {
	if !m.Exists() {
		return nil // Nothing to backup
	}

	backupPath := m.statePath + ".backup"

	src, err := os.Open(m.statePath)
	if err != nil {
		return fmt.Errorf("failed to open run state for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy run state to backup: %w", err)
	}

	m.logger.Debug("Run state backed up")
	return nil
}

// DataDir returns the application data directory for the current OS.
// Run state lives in its checkpoints/ subdirectory; run reports go in
// reports/.
func DataDir() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "tilecov")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "tilecov")
		}
	case "darwin":
		// macOS: ~/Library/Application Support
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "tilecov")
	case "windows":
		// Windows: %APPDATA%
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "tilecov")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	// Create the data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
