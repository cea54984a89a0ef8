package wezterm

import (
	"context"
	"errors"
	"testing"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/terminal"
)

const listJSON = `[
  {"window_id": 0, "tab_id": 0, "pane_id": 0, "title": "zsh", "cwd": "file://host/src/repo", "is_active": true},
  {"window_id": 0, "tab_id": 1, "pane_id": 1, "title": "zsh", "cwd": "file://host/src/repo-x", "is_active": false},
  {"window_id": 0, "tab_id": 1, "pane_id": 2, "title": "vim", "cwd": "file://host/src/repo-x/pkg", "is_active": true},
  {"window_id": 3, "tab_id": 4, "pane_id": 5, "title": "zsh", "cwd": "file://host/src/with%20space", "is_active": true}
]`

func newTestClient(paneID int) (*Client, *executor.MockExecutor) {
	mock := executor.NewMockExecutor(nil)
	mock.AddExactMatch("wezterm", []string{"cli", "list", "--format", "json"}, executor.MockResponse{
		Stdout: []byte(listJSON),
	})
	return New(mock, paneID), mock
}

func TestListSessions(t *testing.T) {
	c, _ := newTestClient(0)

	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 4 {
		t.Fatalf("got %d sessions, want one per pane (4)", len(sessions))
	}

	for i, wantPane := range []string{"1", "2"} {
		s := sessions[i+1]
		if s.TabID != "1" || s.SessionID != wantPane {
			t.Errorf("tab 1 pane %s listed as %+v", wantPane, s)
		}
	}
	if sessions[1].WorkingDirectory != "/src/repo-x" || sessions[2].WorkingDirectory != "/src/repo-x/pkg" {
		t.Errorf("inactive and active panes keep their own cwd: %+v", sessions[1:3])
	}
	if !sessions[0].IsCurrentWindow || !sessions[2].IsCurrentWindow || sessions[3].IsCurrentWindow {
		t.Errorf("current window flags wrong: %+v", sessions)
	}
	if sessions[3].WorkingDirectory != "/src/with space" {
		t.Errorf("cwd should be URL-decoded, got %q", sessions[3].WorkingDirectory)
	}
}

func TestCurrentTab(t *testing.T) {
	c, _ := newTestClient(5)
	s, err := c.CurrentTab(context.Background())
	if err != nil {
		t.Fatalf("CurrentTab failed: %v", err)
	}
	if s.WindowID != "3" || s.TabID != "4" {
		t.Errorf("CurrentTab() = %+v", s)
	}

	c, _ = newTestClient(-1)
	if _, err := c.CurrentTab(context.Background()); err == nil {
		t.Error("expected error outside WezTerm")
	}
}

func TestOpenTab(t *testing.T) {
	c, mock := newTestClient(0)
	mock.AddPrefixMatch("wezterm", []string{"cli", "spawn", "--cwd", "/src/repo-x"}, executor.MockResponse{
		Stdout: []byte("2\n"),
	})

	s, err := c.OpenTab(context.Background(), "/src/repo-x", terminal.NewTab)
	if err != nil {
		t.Fatalf("OpenTab failed: %v", err)
	}
	if s.SessionID != "2" || s.TabID != "1" {
		t.Errorf("opened = %+v", s)
	}

	var spawn executor.MockCall
	for _, call := range mock.GetCalls() {
		if call.Args[1] == "spawn" {
			spawn = call
		}
	}
	if spawn.Args[len(spawn.Args)-1] != "0" {
		t.Errorf("spawn should target the current pane: %v", spawn.Args)
	}
}

func TestSendText(t *testing.T) {
	c, mock := newTestClient(0)
	if err := c.SendText(context.Background(), terminal.Session{SessionID: "2"}, "echo hi\n"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	calls := mock.GetCalls()
	last := calls[len(calls)-1].Args
	if last[len(last)-1] != "echo hi\r" {
		t.Errorf("sent %q, want carriage return", last[len(last)-1])
	}
}

func TestPingFailure(t *testing.T) {
	mock := executor.NewMockExecutor(nil)
	mock.AddPrefixMatch("wezterm", []string{"cli", "list"}, executor.MockResponse{
		Err: errors.New("failed to connect to wezterm"),
	})
	if err := New(mock, 0).Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail")
	}
}

func TestCwdPath(t *testing.T) {
	tests := map[string]string{
		"file://host/home/me":  "/home/me",
		"file:///home/me":      "/home/me",
		"/already/plain":       "/already/plain",
		"":                     "",
		"file://h/a%20b/c%2Fd": "/a b/c/d",
	}
	for in, want := range tests {
		if got := cwdPath(in); got != want {
			t.Errorf("cwdPath(%q) = %q, want %q", in, got, want)
		}
	}
}
