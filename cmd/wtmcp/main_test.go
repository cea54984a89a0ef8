package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/monitor"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/worktree"
	"github.com/badri/wtmcp/internal/wterr"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"create", "close", "open", "switch", "list", "watch",
		"analyze", "notify", "session-id", "serve", "doctor"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCreateRequiredFlags(t *testing.T) {
	for _, name := range []string{"branch", "description"} {
		f := createCmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("--%s flag not found", name)
		}
		if _, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; !ok {
			t.Errorf("--%s should be required", name)
		}
	}
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: []string{"error: boom"},
		},
		{
			name: "structured error with details",
			err: wterr.E(wterr.NotClean, wterr.Op("worktree.Close"), "worktree has uncommitted changes",
				wterr.Details{"a.go", "b.go"}),
			want: []string{"error [NotClean]:", "  - a.go", "  - b.go"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestParseLocation(t *testing.T) {
	if loc, err := parseLocation(""); err != nil || loc != "" {
		t.Errorf("empty location = %q, %v; want the configured default", loc, err)
	}
	if loc, err := parseLocation("new_pane_below"); err != nil || loc != terminal.NewPaneBelow {
		t.Errorf("parseLocation(new_pane_below) = %q, %v", loc, err)
	}
	if _, err := parseLocation("diagonal"); err == nil {
		t.Error("expected an error for an unknown location")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"a-much-longer-name", 10, "a-much-..."},
		{"abcdef", 3, "abc"},
		{"ünïcödé-wörktree", 8, "ünïcö..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestTabList(t *testing.T) {
	if got := tabList(nil); got != "-" {
		t.Errorf("tabList(nil) = %q, want -", got)
	}
	tabs := []terminal.TabBinding{
		{Session: terminal.Session{TabID: "@1"}},
		{Session: terminal.Session{TabID: "@4", SessionID: "%4"}},
		{Session: terminal.Session{TabID: "@4", SessionID: "%7"}},
	}
	if got := tabList(tabs); got != "@1,@4" {
		t.Errorf("tabList = %q, want @1,@4", got)
	}
}

func testRows() []monitor.Row {
	return []monitor.Row{
		{Worktree: worktree.Worktree{Name: "repo", Branch: "main", Main: true}, Status: monitor.StatusMain},
		{Worktree: worktree.Worktree{Name: "repo-auth", Branch: "feature/auth", BaseBranch: "main"}, Status: monitor.StatusOpen, Ahead: 2},
	}
}

func TestWatchModelNavigation(t *testing.T) {
	var switched []string
	src := watchSource{
		snapshot: func(context.Context) ([]monitor.Row, error) { return testRows(), nil },
		switchTo: func(_ context.Context, name string) error {
			switched = append(switched, name)
			return nil
		},
	}
	var m tea.Model = newWatchModel(src, 0)
	m, _ = m.Update(rowsMsg{rows: testRows()})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(watchModel).cursor; got != 1 {
		t.Fatalf("cursor = %d after down, want 1", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(watchModel).cursor; got != 1 {
		t.Errorf("cursor moved past the last row: %d", got)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	if msg, ok := cmd().(switchedMsg); !ok || msg.err != nil {
		t.Errorf("switch command returned %#v", msg)
	}
	if len(switched) != 1 || switched[0] != "repo-auth" {
		t.Errorf("switched to %v, want [repo-auth]", switched)
	}

	view := m.View()
	for _, want := range []string{"repo-auth", "feature/auth", "Ahead:"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestWatchModelKeepsRowsOnError(t *testing.T) {
	var m tea.Model = newWatchModel(watchSource{}, 0)
	m, _ = m.Update(rowsMsg{rows: testRows()})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(rowsMsg{err: errors.New("tmux is not reachable")})

	wm := m.(watchModel)
	if len(wm.rows) != 2 {
		t.Errorf("rows = %d, want the previous 2 kept", len(wm.rows))
	}
	if !strings.Contains(wm.View(), "tmux is not reachable") {
		t.Error("view does not show the refresh error")
	}

	m, _ = m.Update(rowsMsg{rows: testRows()[:1]})
	if got := m.(watchModel).cursor; got != 0 {
		t.Errorf("cursor = %d, want clamped to 0", got)
	}
}

func TestWatchModelQuit(t *testing.T) {
	var m tea.Model = newWatchModel(watchSource{}, 0)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}
