package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"nidwatch/internal/analysis"
)

func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "d":
			m.resolver.SetDemoMode(!m.resolver.DemoMode())
			return m.reload()
		case "r":
			return m.reload()
		}

	case resolvedMsg:
		m.loading = false
		m.result = msg.result
		m.err = msg.err
		m.summary = analysis.Summary{}
		m.alerts = nil
		m.oversized = 0
		if msg.err == nil && msg.result != nil {
			tbl := msg.result.Table
			m.summary = analysis.Summarize(tbl, 10)
			ad := analysis.DetectAnomalies(tbl, analysis.DefaultConfig())
			m.alerts = ad.GetRecentAlerts(5)
			m.oversized = ad.OversizedPackets()
		}

		// Update table
		rows := make([]table.Row, len(m.summary.TopTalkers))
		for i, stat := range m.summary.TopTalkers {
			rows[i] = table.Row{stat.IP, fmt.Sprintf("%d", stat.Packets), fmt.Sprintf("%d", stat.Bytes)}
		}
		m.table.SetRows(rows)
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m SessionModel) reload() (tea.Model, tea.Cmd) {
	if m.path == "" {
		return m, nil
	}
	m.loading = true
	return m, resolveCmd(m.resolver, m.path)
}
