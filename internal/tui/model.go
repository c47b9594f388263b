package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nidwatch/internal/analysis"
	"nidwatch/internal/parser"
)

// Resolver is the part of the parsing pipeline the viewer drives.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*parser.Result, error)
	SetDemoMode(on bool)
	DemoMode() bool
}

// SessionModel shows one resolved file.
type SessionModel struct {
	resolver Resolver
	path     string

	loading   bool
	result    *parser.Result
	err       error
	summary   analysis.Summary
	alerts    []analysis.Alert
	oversized int
	table     table.Model
}

// resolvedMsg carries the outcome of a background resolve.
type resolvedMsg struct {
	result *parser.Result
	err    error
}

func NewSessionModel(r Resolver, path string) SessionModel {
	columns := []table.Column{
		{Title: "Source", Width: 40},
		{Title: "Packets", Width: 10},
		{Title: "Bytes", Width: 15},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return SessionModel{
		resolver: r,
		path:     path,
		table:    t,
	}
}

func (m SessionModel) Init() tea.Cmd {
	if m.path == "" {
		return nil
	}
	return resolveCmd(m.resolver, m.path)
}

func resolveCmd(r Resolver, path string) tea.Cmd {
	return func() tea.Msg {
		res, err := r.Resolve(context.Background(), path)
		return resolvedMsg{result: res, err: err}
	}
}
