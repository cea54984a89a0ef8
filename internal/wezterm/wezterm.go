// Package wezterm drives WezTerm through `wezterm cli` as the terminal host.
package wezterm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/terminal"
)

// pane is one entry of `wezterm cli list --format json`.
type pane struct {
	WindowID int    `json:"window_id"`
	TabID    int    `json:"tab_id"`
	PaneID   int    `json:"pane_id"`
	Title    string `json:"title"`
	Cwd      string `json:"cwd"`
	IsActive bool   `json:"is_active"`
}

// Client talks to the WezTerm GUI the process runs in.
type Client struct {
	exec executor.CommandExecutor
	// paneID is $WEZTERM_PANE, or -1 outside WezTerm.
	paneID int
}

// New returns a Client for paneID (-1 when unknown).
func New(exec executor.CommandExecutor, paneID int) *Client {
	return &Client{exec: exec, paneID: paneID}
}

// FromEnv returns a Client for the pane named by $WEZTERM_PANE.
func FromEnv(exec executor.CommandExecutor) *Client {
	id, err := strconv.Atoi(os.Getenv("WEZTERM_PANE"))
	if err != nil {
		id = -1
	}
	return New(exec, id)
}

// Detected reports whether the process runs inside WezTerm.
func Detected() bool {
	return os.Getenv("WEZTERM_PANE") != ""
}

func (c *Client) Name() string { return "wezterm" }

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	out, err := c.exec.Output(ctx, "", "wezterm", append([]string{"cli"}, args...)...)
	if err != nil {
		return "", fmt.Errorf("wezterm cli %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) panes(ctx context.Context) ([]pane, error) {
	out, err := c.run(ctx, "list", "--format", "json")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var panes []pane
	if err := json.Unmarshal([]byte(out), &panes); err != nil {
		return nil, fmt.Errorf("parsing wezterm pane list: %w", err)
	}
	return panes, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.panes(ctx)
	return err
}

// ListSessions reports one session per pane. Panes of a split tab share
// its TabID.
func (c *Client) ListSessions(ctx context.Context) ([]terminal.Session, error) {
	panes, err := c.panes(ctx)
	if err != nil {
		return nil, err
	}
	return c.sessions(panes), nil
}

func (c *Client) sessions(panes []pane) []terminal.Session {
	currentWindow := -1
	for _, p := range panes {
		if p.PaneID == c.paneID {
			currentWindow = p.WindowID
		}
	}

	sessions := make([]terminal.Session, 0, len(panes))
	for _, p := range panes {
		s := toSession(p)
		s.IsCurrentWindow = p.WindowID == currentWindow
		sessions = append(sessions, s)
	}
	return sessions
}

func toSession(p pane) terminal.Session {
	return terminal.Session{
		WindowID:         strconv.Itoa(p.WindowID),
		TabID:            strconv.Itoa(p.TabID),
		SessionID:        strconv.Itoa(p.PaneID),
		WorkingDirectory: cwdPath(p.Cwd),
	}
}

// cwdPath converts WezTerm's file://host/path cwd into a plain path.
func cwdPath(cwd string) string {
	if !strings.HasPrefix(cwd, "file://") {
		return cwd
	}
	u, err := url.Parse(cwd)
	if err != nil {
		return strings.TrimPrefix(cwd, "file://")
	}
	return u.Path
}

func (c *Client) CurrentTab(ctx context.Context) (terminal.Session, error) {
	if c.paneID < 0 {
		return terminal.Session{}, fmt.Errorf("not running inside a WezTerm pane")
	}
	panes, err := c.panes(ctx)
	if err != nil {
		return terminal.Session{}, err
	}
	for _, p := range panes {
		if p.PaneID == c.paneID {
			s := toSession(p)
			s.IsCurrentWindow = true
			return s, nil
		}
	}
	return terminal.Session{}, fmt.Errorf("pane %d not found", c.paneID)
}

func (c *Client) OpenTab(ctx context.Context, dir string, loc terminal.Location) (terminal.Session, error) {
	var args []string
	switch loc {
	case terminal.NewWindow:
		args = []string{"spawn", "--new-window", "--cwd", dir}
	case terminal.NewPaneRight:
		args = []string{"split-pane", "--right", "--cwd", dir}
	case terminal.NewPaneBelow:
		args = []string{"split-pane", "--bottom", "--cwd", dir}
	default:
		args = []string{"spawn", "--cwd", dir}
	}
	if c.paneID >= 0 && loc != terminal.NewWindow {
		args = append(args, "--pane-id", strconv.Itoa(c.paneID))
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return terminal.Session{}, err
	}
	newPane, err := strconv.Atoi(out)
	if err != nil {
		return terminal.Session{}, fmt.Errorf("unexpected wezterm output %q", out)
	}

	panes, err := c.panes(ctx)
	if err != nil {
		return terminal.Session{}, err
	}
	for _, p := range panes {
		if p.PaneID == newPane {
			s := toSession(p)
			if s.WorkingDirectory == "" {
				s.WorkingDirectory = dir
			}
			return s, nil
		}
	}
	return terminal.Session{}, fmt.Errorf("spawned pane %d not listed", newPane)
}

func (c *Client) ActivateTab(ctx context.Context, s terminal.Session) error {
	if _, err := c.run(ctx, "activate-tab", "--tab-id", s.TabID); err != nil {
		return err
	}
	if s.SessionID != "" {
		if _, err := c.run(ctx, "activate-pane", "--pane-id", s.SessionID); err != nil {
			return err
		}
	}
	return nil
}

// SendText types text without bracketed paste. A trailing newline is sent
// as a carriage return so the shell executes the line.
func (c *Client) SendText(ctx context.Context, s terminal.Session, text string) error {
	if body, ok := strings.CutSuffix(text, "\n"); ok {
		text = body + "\r"
	}
	_, err := c.run(ctx, "send-text", "--pane-id", s.SessionID, "--no-paste", text)
	return err
}

func (c *Client) CloseTab(ctx context.Context, s terminal.Session) error {
	_, err := c.run(ctx, "kill-pane", "--pane-id", s.SessionID)
	return err
}

var _ terminal.Host = (*Client)(nil)
