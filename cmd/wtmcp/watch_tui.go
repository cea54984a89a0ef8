package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/monitor"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	statusMainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170"))

	statusFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("46"))

	statusOpenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	statusDetachedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	cardLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cardValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// Key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "switch"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// watchSource feeds the watch view.
type watchSource struct {
	snapshot func(ctx context.Context) ([]monitor.Row, error)
	switchTo func(ctx context.Context, worktree string) error
}

// Model
type watchModel struct {
	src         watchSource
	interval    time.Duration
	rows        []monitor.Row
	cursor      int
	width       int
	height      int
	lastRefresh time.Time
	err         error
	quitting    bool
}

// Messages
type tickMsg time.Time
type rowsMsg struct {
	rows []monitor.Row
	err  error
}
type switchedMsg struct{ err error }

// Commands
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadRowsCmd(src watchSource) tea.Cmd {
	return func() tea.Msg {
		rows, err := src.snapshot(context.Background())
		return rowsMsg{rows: rows, err: err}
	}
}

// switchTabCmd focuses the worktree's tab; the watch keeps running in its own.
func switchTabCmd(src watchSource, name string) tea.Cmd {
	return func() tea.Msg {
		return switchedMsg{err: src.switchTo(context.Background(), name)}
	}
}

func newWatchModel(src watchSource, interval time.Duration) watchModel {
	return watchModel{
		src:         src,
		interval:    interval,
		lastRefresh: time.Now(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(loadRowsCmd(m.src), tickCmd(m.interval))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}

		case key.Matches(msg, keys.Enter):
			if m.cursor < len(m.rows) {
				return m, switchTabCmd(m.src, m.rows[m.cursor].Worktree.Name)
			}

		case key.Matches(msg, keys.Refresh):
			return m, loadRowsCmd(m.src)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.lastRefresh = time.Time(msg)
		return m, tea.Batch(loadRowsCmd(m.src), tickCmd(m.interval))

	case rowsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.rows = msg.rows
		}
		if m.cursor >= len(m.rows) && len(m.rows) > 0 {
			m.cursor = len(m.rows) - 1
		}

	case switchedMsg:
		m.err = msg.err
		if msg.err == nil {
			return m, loadRowsCmd(m.src)
		}
	}

	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wtmcp watch") + " ")
	b.WriteString(helpStyle.Render(m.lastRefresh.Format("15:04:05")) + "\n\n")

	if len(m.rows) == 0 {
		b.WriteString(normalStyle.Render("No worktrees.\n"))
		b.WriteString(helpStyle.Render("\nCreate one with: wtmcp create <folder> -b <branch> -d <task>"))
	} else {
		for i, row := range m.rows {
			name := truncateStr(row.Worktree.Name, 16)
			ref := truncateStr(row.Worktree.Ref(), 18)
			if i == m.cursor {
				b.WriteString(selectedStyle.Render(fmt.Sprintf("> %-16s %s", name, ref)) + "\n")
				continue
			}
			icon := renderStatus(row.Status, monitor.StatusIcon(row.Status))
			b.WriteString(fmt.Sprintf("  %s %-16s %s\n", icon, name, ref))
		}

		if m.cursor < len(m.rows) {
			b.WriteString("\n" + cardStyle.Render(renderCard(m.rows[m.cursor])))
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(truncateStr(m.err.Error(), 60)))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("↑/↓  navigate") + "\n")
	b.WriteString(helpStyle.Render("enter  switch to worktree") + "\n")
	b.WriteString(helpStyle.Render("r  refresh") + "\n")
	b.WriteString(helpStyle.Render("q  quit"))
	return b.String()
}

func renderCard(row monitor.Row) string {
	wt := row.Worktree
	var card strings.Builder
	card.WriteString(cardTitleStyle.Render(wt.Name) + "\n")
	card.WriteString(cardLabelStyle.Render("Branch:  ") + cardValueStyle.Render(wt.Ref()) + "\n")
	if wt.BaseBranch != "" && !wt.Main {
		card.WriteString(cardLabelStyle.Render("Base:    ") + cardValueStyle.Render(wt.BaseBranch) + "\n")
		card.WriteString(cardLabelStyle.Render("Ahead:   ") + cardValueStyle.Render(fmt.Sprint(row.Ahead)) + "\n")
	}
	card.WriteString(cardLabelStyle.Render("Status:  ") + renderStatus(row.Status, row.Status) + "\n")
	if row.Dirty > 0 {
		card.WriteString(cardLabelStyle.Render("Dirty:   ") + cardValueStyle.Render(fmt.Sprintf("%d file(s)", row.Dirty)) + "\n")
	}
	if len(wt.Tabs) > 0 {
		card.WriteString(cardLabelStyle.Render("Tabs:    ") + cardValueStyle.Render(tabList(wt.Tabs)) + "\n")
	}
	if wt.Description != "" {
		card.WriteString(cardLabelStyle.Render("Task:    ") + cardValueStyle.Render(truncateStr(wt.Description, 40)))
	}
	return strings.TrimRight(card.String(), "\n")
}

// renderStatus styles text by status.
func renderStatus(status, text string) string {
	switch status {
	case monitor.StatusMain:
		return statusMainStyle.Render(text)
	case monitor.StatusFocused:
		return statusFocusedStyle.Render(text)
	case monitor.StatusOpen:
		return statusOpenStyle.Render(text)
	case monitor.StatusDetached:
		return statusDetachedStyle.Render(text)
	default:
		return normalStyle.Render(text)
	}
}

func truncateStr(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-2]) + ".."
}

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of worktrees and their tabs; enter switches",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "Refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadTerminalApp(cmd.Context())
	if err != nil {
		return err
	}
	src := watchSource{
		snapshot: func(ctx context.Context) ([]monitor.Row, error) {
			return monitor.Snapshot(ctx, a.Manager)
		},
		switchTo: func(ctx context.Context, name string) error {
			_, err := a.Manager.Resolver().SwitchTo(ctx, name, "")
			return err
		},
	}
	p := tea.NewProgram(newWatchModel(src, watchInterval), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = p.Run()
	return err
}
