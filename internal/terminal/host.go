// Package terminal resolves worktrees to the live terminal tabs rooted in
// them. Nothing is persisted: every resolution lists the host's sessions and
// matches working directories, so tabs closed or reused by hand never leave
// stale state behind.
package terminal

import (
	"context"
	"fmt"
)

// Location says where a new tab is opened.
type Location string

const (
	NewTab       Location = "new_tab"
	NewWindow    Location = "new_window"
	NewPaneRight Location = "new_pane_right"
	NewPaneBelow Location = "new_pane_below"
)

// ParseLocation validates s as a Location. Empty means NewTab.
func ParseLocation(s string) (Location, error) {
	switch Location(s) {
	case "":
		return NewTab, nil
	case NewTab, NewWindow, NewPaneRight, NewPaneBelow:
		return Location(s), nil
	}
	return "", fmt.Errorf("unknown open location %q", s)
}

// Session is one pane of the terminal host as seen at listing time. A tab
// split into panes lists one Session per pane, all sharing its TabID.
type Session struct {
	WindowID         string `json:"window_id"`
	TabID            string `json:"tab_id"`
	SessionID        string `json:"session_id"`
	WorkingDirectory string `json:"working_directory"`
	IsCurrentWindow  bool   `json:"is_current_window"`
}

// Same reports whether s and o are the same pane. Sessions without a pane id
// compare by tab.
func (s Session) Same(o Session) bool {
	if s.SessionID != "" && o.SessionID != "" {
		return s.SessionID == o.SessionID
	}
	return s.TabID == o.TabID
}

// Host is a terminal-automation backend.
type Host interface {
	// Name identifies the backend, e.g. "tmux".
	Name() string
	// Ping fails when the automation transport cannot be reached.
	Ping(ctx context.Context) error
	// ListSessions enumerates every pane of every tab across every window.
	ListSessions(ctx context.Context) ([]Session, error)
	// CurrentTab returns the tab this process runs in.
	CurrentTab(ctx context.Context) (Session, error)
	// OpenTab opens a tab rooted at dir.
	OpenTab(ctx context.Context, dir string, loc Location) (Session, error)
	// ActivateTab focuses a tab, switching windows if needed.
	ActivateTab(ctx context.Context, s Session) error
	// SendText types text into a tab. A trailing newline submits it.
	SendText(ctx context.Context, s Session, text string) error
	// CloseTab closes the session's pane. The tab closes with its last pane.
	CloseTab(ctx context.Context, s Session) error
}
