package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	// Build the UI layout
	var sections []string

	// Logo
	sections = append(sections, m.renderLogo())

	// Main content area with two columns
	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ", // spacing
		rightColumn,
	)
	sections = append(sections, mainContent)

	// Help
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	// Join all sections vertically
	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

// renderLogo renders the cyberpunk logo
func (m *Model) renderLogo() string {
	logo := `
╔══════════════════════════════════════════════════════════════╗
║ ████████╗██╗██╗     ███████╗ ██████╗ ██████╗ ██╗   ██╗       ║
║ ╚══██╔══╝██║██║     ██╔════╝██╔════╝██╔═══██╗██║   ██║       ║
║    ██║   ██║██║     █████╗  ██║     ██║   ██║██║   ██║       ║
║    ██║   ██║██║     ██╔══╝  ██║     ██║   ██║╚██╗ ██╔╝       ║
║    ██║   ██║███████╗███████╗╚██████╗╚██████╔╝ ╚████╔╝        ║
║    ╚═╝   ╚═╝╚══════╝╚══════╝ ╚═════╝ ╚═════╝   ╚═══╝         ║
║        NETRUNNER EDITION - TILE COVERAGE PROBE v1.0          ║
╚══════════════════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

// renderLeftColumn renders the left side of the UI
func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	var sections []string

	// Stats panel
	sections = append(sections, m.renderStatsPanel(width))

	// Current batch panel
	sections = append(sections, m.renderBatchPanel(width))

	// Recent tiles panel
	sections = append(sections, m.renderRecentPanel(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderRightColumn renders the right side of the UI
func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	var sections []string

	// Pacer panel
	sections = append(sections, m.renderPacerPanel(width))

	// Logs panel
	sections = append(sections, m.renderLogsPanel(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatsPanel renders the statistics panel
func (m *Model) renderStatsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" SYSTEM STATS ")

	elapsed := time.Since(m.sessionStartTime)
	rate := m.probeRateLocked()

	coveredPct := 0.0
	if checked := m.covered + m.uncovered; checked > 0 {
		coveredPct = float64(m.covered) / float64(checked) * 100
	}

	var eta time.Duration
	if rate > 0 && m.pending > 0 {
		eta = time.Duration(float64(m.pending)/rate) * time.Second
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Zoom Level:"), statsValueStyle.Render(fmt.Sprintf("z%d", m.zoom))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Tiles Probed:"), statsValueStyle.Render(FormatCount(m.probed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Covered:"), successStyle.Render(fmt.Sprintf("%s (%.1f%%)", FormatCount(m.covered), coveredPct))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Uncovered:"), statsValueStyle.Render(FormatCount(m.uncovered))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), errorStyle.Render(FormatCount(m.failed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Pending:"), statsValueStyle.Render(FormatCount(m.pending))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Probe Rate:"), rateStyle.Render(FormatRate(rate))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(eta))),
	}

	if m.isPaused {
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, stats...)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderBatchPanel renders the current batch with its progress bar
func (m *Model) renderBatchPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" CURRENT BATCH ")

	if m.currentBatch == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for first batch...")
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, content),
		)
	}

	progress := 0.0
	if m.batchSize > 0 {
		progress = float64(m.batchProbed) / float64(m.batchSize)
	}
	if progress > 1.0 {
		progress = 1.0
	}

	bar := m.batchBar
	bar.Width = width - 8

	info := fmt.Sprintf("%s %s",
		statsLabelStyle.Render(fmt.Sprintf("Batch #%d:", m.currentBatch)),
		statsValueStyle.Render(fmt.Sprintf("%d/%d tiles", m.batchProbed, m.batchSize)),
	)

	committed := fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Committed:"),
		statsValueStyle.Render(fmt.Sprintf("%d batches", m.batchesCommitted)),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, info, bar.ViewAs(progress), committed)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderRecentPanel renders the recent tile outcomes
func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" RECENT TILES ")

	recent := m.GetRecentOutcomes()

	if len(recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No tiles probed yet")
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, content),
		)
	}

	var items []string
	for _, outcome := range recent {
		switch {
		case outcome.Failed:
			detail := ""
			if outcome.Error != nil {
				detail = " - " + truncate(outcome.Error.Error(), width-len(outcome.Tile)-10)
			}
			items = append(items, tileFailedStyle.Render("✗ "+outcome.Tile+detail))
		case outcome.Covered:
			items = append(items, tileCoveredStyle.Render(fmt.Sprintf("✓ %s (%d features)", outcome.Tile, outcome.Features)))
		default:
			items = append(items, tileUncoveredStyle.Render("○ "+outcome.Tile))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, items...)

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderPacerPanel renders the request pacer status
func (m *Model) renderPacerPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" REQUEST PACER ")

	rate := m.probeRateLocked()
	usage := 0.0
	if m.targetRate > 0 {
		usage = rate / m.targetRate * 100
	}
	if usage > 100 {
		usage = 100
	}

	// Bar showing observed rate against the configured ceiling
	barWidth := width - 8
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(usage * float64(barWidth) / 100)
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	barStyle := GetPacerStyle(usage)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", empty))

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Target:"), statsValueStyle.Render(FormatRate(m.targetRate))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Observed:"),
			barStyle.Render(fmt.Sprintf("%s (%.0f%%)", FormatRate(rate), usage))),
		bar,
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

// renderLogsPanel renders the logs panel
func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" SYSTEM LOGS ")

	// Get recent logs
	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for i := start; i < len(m.logMessages); i++ {
		log := m.logMessages[i]
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))

		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	// Calculate height for logs panel to fill remaining space
	logsHeight := m.height - 35 // Approximate calculation
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

// renderHelp renders the help panel
func (m *Model) renderHelp() string {
	help := `
  Navigation:
    q/Q      - Quit the application
    p/P      - Pause/Resume probing
    ?        - Toggle this help
    ctrl+l   - Clear logs

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Covered/Healthy
    ` + warningStyle.Render("Orange") + `   - Warning/Pending
    ` + errorStyle.Render("Red") + `      - Error/Critical

  Icons:
    ✓        - Covered tile
    ○        - Uncovered tile
    ✗        - Failed probe
    ⏸        - Paused
    █        - Pacer usage
`

	return panelStyle.Width(m.width).Render(help)
}

// truncate shortens a string to at most max runes with an ellipsis
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
