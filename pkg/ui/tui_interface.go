package ui

// TUI is an interface for terminal user interfaces
type TUI interface {
	StartBatch(batch, size int)
	CompleteProbe(tile string, covered bool, features int)
	FailProbe(tile string, err error)
	BatchCommitted(batch, covered, uncovered, failed int)
	UpdatePending(pending int)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
	IsPaused() bool
}
