// Package tmux drives tmux as the terminal host.
//
// tmux has no tabs, so the mapping is: a tmux session is a window, a tmux
// window is a tab, and each of its panes is a session running in that tab.
package tmux

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/terminal"
)

// listFormat prints one pane per line. The path is empty for a pane whose
// shell has not reported a directory yet, so lines end in a tab.
const listFormat = "#{session_id}\t#{window_id}\t#{pane_id}\t#{pane_current_path}"

// Client talks to the tmux server the current process belongs to.
type Client struct {
	exec executor.CommandExecutor
	// pane is the pane this process runs in ($TMUX_PANE), used to find the
	// current window and tab.
	pane string
	// Socket selects a named server (tmux -L). Empty means the default one.
	Socket string
	// EnterDelay separates typed text from the Enter that submits it.
	EnterDelay time.Duration

	sendMu sync.Mutex
}

// New returns a Client. pane may be empty when not running inside tmux.
func New(exec executor.CommandExecutor, pane string) *Client {
	return &Client{exec: exec, pane: pane, EnterDelay: 100 * time.Millisecond}
}

// FromEnv returns a Client for the pane named by $TMUX_PANE.
func FromEnv(exec executor.CommandExecutor) *Client {
	return New(exec, os.Getenv("TMUX_PANE"))
}

// Detected reports whether the process runs inside tmux.
func Detected() bool {
	return os.Getenv("TMUX") != ""
}

func (c *Client) Name() string { return "tmux" }

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	argv := args
	if c.Socket != "" {
		argv = append([]string{"-L", c.Socket}, args...)
	}
	out, err := c.exec.Output(ctx, "", "tmux", argv...)
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// Ping asks the server for the current session id.
func (c *Client) Ping(ctx context.Context) error {
	args := []string{"display-message", "-p"}
	if c.pane != "" {
		args = append(args, "-t", c.pane)
	}
	_, err := c.run(ctx, append(args, "#{session_id}")...)
	return err
}

func (c *Client) ListSessions(ctx context.Context) ([]terminal.Session, error) {
	out, err := c.run(ctx, "list-panes", "-a", "-F", listFormat)
	if err != nil {
		// No sessions is not an error.
		if isNoServer(err) {
			return nil, nil
		}
		return nil, err
	}

	current := ""
	if cur, err := c.CurrentTab(ctx); err == nil {
		current = cur.WindowID
	}

	var sessions []terminal.Session
	for _, line := range strings.Split(out, "\n") {
		s, ok := parseLine(line)
		if !ok {
			continue
		}
		s.IsCurrentWindow = current != "" && s.WindowID == current
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func isNoServer(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no server running") || strings.Contains(msg, "no sessions")
}

func parseLine(line string) (terminal.Session, bool) {
	fields := strings.SplitN(line, "\t", 4)
	if len(fields) != 4 || fields[1] == "" {
		return terminal.Session{}, false
	}
	return terminal.Session{
		WindowID:         fields[0],
		TabID:            fields[1],
		SessionID:        fields[2],
		WorkingDirectory: fields[3],
	}, true
}

func (c *Client) CurrentTab(ctx context.Context) (terminal.Session, error) {
	if c.pane == "" {
		return terminal.Session{}, fmt.Errorf("not running inside a tmux pane")
	}
	out, err := c.run(ctx, "display-message", "-p", "-t", c.pane, listFormat)
	if err != nil {
		return terminal.Session{}, err
	}
	s, ok := parseLine(out)
	if !ok {
		return terminal.Session{}, fmt.Errorf("unexpected tmux output %q", out)
	}
	s.IsCurrentWindow = true
	return s, nil
}

// OpenTab creates a tmux window (tab), session (window) or split pane.
// New windows and panes take focus; new sessions are created detached.
func (c *Client) OpenTab(ctx context.Context, dir string, loc terminal.Location) (terminal.Session, error) {
	var args []string
	switch loc {
	case terminal.NewWindow:
		args = []string{"new-session", "-d", "-P", "-F", listFormat, "-c", dir}
	case terminal.NewPaneRight, terminal.NewPaneBelow:
		flag := "-h"
		if loc == terminal.NewPaneBelow {
			flag = "-v"
		}
		args = []string{"split-window", flag, "-P", "-F", listFormat, "-c", dir}
		if c.pane != "" {
			args = append(args, "-t", c.pane)
		}
	default:
		args = []string{"new-window", "-P", "-F", listFormat, "-c", dir}
		if cur, err := c.CurrentTab(ctx); err == nil {
			args = append(args, "-t", cur.WindowID+":")
		}
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return terminal.Session{}, err
	}
	s, ok := parseLine(out)
	if !ok {
		return terminal.Session{}, fmt.Errorf("unexpected tmux output %q", out)
	}
	if s.WorkingDirectory == "" {
		s.WorkingDirectory = dir
	}
	return s, nil
}

// ActivateTab focuses the tab, switching the client to its session first
// when it lives in another one.
func (c *Client) ActivateTab(ctx context.Context, s terminal.Session) error {
	if cur, err := c.CurrentTab(ctx); err != nil || cur.WindowID != s.WindowID {
		// Fails without an attached client; select-window still makes the
		// tab current within its session.
		_, _ = c.run(ctx, "switch-client", "-t", s.WindowID)
	}
	if _, err := c.run(ctx, "select-window", "-t", s.TabID); err != nil {
		return err
	}
	if s.SessionID != "" {
		if _, err := c.run(ctx, "select-pane", "-t", s.SessionID); err != nil {
			return err
		}
	}
	return nil
}

// SendText types text into the tab's pane using send-keys -l, which handles
// special characters literally. A trailing newline is sent as Enter.
// Calls are serialized so concurrent sends never interleave keystrokes.
func (c *Client) SendText(ctx context.Context, s terminal.Session, text string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	target := s.SessionID
	if target == "" {
		target = s.TabID
	}
	body, submit := strings.CutSuffix(text, "\n")
	if body != "" {
		if _, err := c.run(ctx, "send-keys", "-t", target, "-l", body); err != nil {
			return fmt.Errorf("sending text: %w", err)
		}
	}
	if !submit {
		return nil
	}
	if c.EnterDelay > 0 {
		time.Sleep(c.EnterDelay)
	}
	if _, err := c.run(ctx, "send-keys", "-t", target, "Enter"); err != nil {
		return fmt.Errorf("sending Enter: %w", err)
	}
	return nil
}

// CloseTab kills the tab's pane; tmux closes the window with its last pane.
func (c *Client) CloseTab(ctx context.Context, s terminal.Session) error {
	target := s.SessionID
	if target == "" {
		_, err := c.run(ctx, "kill-window", "-t", s.TabID)
		return err
	}
	_, err := c.run(ctx, "kill-pane", "-t", target)
	return err
}

var _ terminal.Host = (*Client)(nil)
