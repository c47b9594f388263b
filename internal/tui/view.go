package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)
)

func (m SessionModel) View() string {
	demo := "off"
	if m.resolver.DemoMode() {
		demo = "on"
	}
	file := "-"
	if m.path != "" {
		file = filepath.Base(m.path)
	}
	source := "-"
	if m.result != nil && m.result.Source != "" {
		source = m.result.Source
	}
	title := titleStyle.Render(fmt.Sprintf("nidwatch - File: %s | Parsed by: %s | Rows: %d | Demo: %s",
		file, source, m.summary.Packets, demo))

	// Summary Panel
	sum := m.summary
	summary := fmt.Sprintf("Packets: %d\nSources: %d\nDestinations: %d\nTotal: %s\nLength: mean %.1f, stddev %.1f\n        min %d, max %d",
		sum.Packets, sum.UniqueSources, sum.UniqueDestinations, formatBytes(sum.TotalBytes),
		sum.LengthMean, sum.LengthStdDev, sum.LengthMin, sum.LengthMax)
	summaryBox := infoStyle.Render(summary)

	// Alerts
	var alertStrs []string
	for _, a := range m.alerts {
		alertStrs = append(alertStrs, alertStyle.Render(string(a.Type))+" "+a.Message)
	}
	if len(alertStrs) == 0 {
		alertStrs = append(alertStrs, "No anomalies.")
	}
	alertBox := infoStyle.Render(fmt.Sprintf("Anomalies (oversized: %d):\n", m.oversized) + strings.Join(alertStrs, "\n"))

	// Top Talkers
	ttBox := infoStyle.Render("Top Talkers\n" + m.table.View())

	// Layout
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, summaryBox, alertBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, ttBox)

	return body + "\n" + m.status() + "\nPress q to quit, d to toggle demo mode, r to reload."
}

func (m SessionModel) status() string {
	switch {
	case m.path == "":
		return "No file loaded."
	case m.loading:
		return "Parsing..."
	case m.err != nil:
		return "Error: " + m.err.Error()
	case m.result == nil:
		return "Parsing..."
	case m.result.Table.Empty():
		msg := "File parsed but produced zero usable rows. Enable demo mode (d) or check that tshark is installed."
		if m.result.Note != "" {
			msg += "\n" + m.result.Note
		}
		return msg
	}
	return fmt.Sprintf("Processed %d rows.", m.result.Table.Len())
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
