package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Table styles
var (
	tableTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	tableDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tableWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// renderTable creates and renders a styled table
func renderTable(title string, columns []table.Column, rows []table.Row) string {
	if len(rows) == 0 {
		return ""
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("229"))
	s.Selected = lipgloss.NewStyle() // No selection highlighting for static display
	s.Cell = s.Cell.Foreground(lipgloss.Color("252"))
	t.SetStyles(s)

	var output string
	if title != "" {
		output = tableTitleStyle.Render(title) + "\n\n"
	}
	output += t.View()

	return output
}

func printTable(w io.Writer, title string, columns []table.Column, rows []table.Row) {
	fmt.Fprintln(w, renderTable(title, columns, rows))
}

// printEmptyMessage prints a styled empty state message
func printEmptyMessage(w io.Writer, message, hint string) {
	fmt.Fprintln(w, tableDimStyle.Render(message))
	if hint != "" {
		fmt.Fprintln(w, tableDimStyle.Render("\n"+hint))
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
