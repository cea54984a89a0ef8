package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockHost is an in-memory Host for tests. Panes live in Sessions; the pane
// the process "runs in" is Current.
type MockHost struct {
	mu sync.Mutex

	Sessions []Session
	Current  Session

	PingErr     error
	ListErr     error
	OpenErr     error
	ActivateErr error
	SendErr     error
	CloseErr    error
	// ListFailures makes the next N listings fail with ListErr (or a
	// generic error) before succeeding.
	ListFailures int
	// CloseErrFor fails CloseTab for specific tab ids.
	CloseErrFor map[string]error

	ListCalls int
	Activated []string
	Closed    []string
	Sent      []SentText
	Opened    []Session

	nextID int
}

// SentText records a SendText call.
type SentText struct {
	TabID string
	Text  string
}

// NewMockHost returns a host with one window ("$1") holding one tab rooted
// at cwd, which is also the current tab.
func NewMockHost(cwd string) *MockHost {
	m := &MockHost{nextID: 1, CloseErrFor: make(map[string]error)}
	m.Current = m.AddTab("$1", cwd)
	return m
}

// AddTab adds a tab to window and returns it (for test setup).
func (m *MockHost) AddTab(windowID, dir string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addTabLocked(windowID, dir)
}

func (m *MockHost) addTabLocked(windowID, dir string) Session {
	m.nextID++
	s := Session{
		WindowID:         windowID,
		TabID:            fmt.Sprintf("@%d", m.nextID),
		SessionID:        fmt.Sprintf("%%%d", m.nextID),
		WorkingDirectory: dir,
	}
	m.Sessions = append(m.Sessions, s)
	return s
}

func (m *MockHost) Name() string { return "mock" }

func (m *MockHost) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockHost) ListSessions(ctx context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	if m.ListFailures > 0 {
		m.ListFailures--
		if m.ListErr != nil {
			return nil, m.ListErr
		}
		return nil, fmt.Errorf("listing failed")
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	out := make([]Session, len(m.Sessions))
	for i, s := range m.Sessions {
		s.IsCurrentWindow = s.WindowID == m.Current.WindowID
		out[i] = s
	}
	return out, nil
}

func (m *MockHost) CurrentTab(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.Current
	s.IsCurrentWindow = true
	return s, nil
}

// OpenTab opens a tab and focuses it, as tmux new-window does. Pane
// locations split the current tab instead.
func (m *MockHost) OpenTab(ctx context.Context, dir string, loc Location) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return Session{}, m.OpenErr
	}
	window := m.Current.WindowID
	if loc == NewWindow {
		window = fmt.Sprintf("$%d", m.nextID+100)
	}
	var s Session
	switch loc {
	case NewPaneRight, NewPaneBelow:
		m.nextID++
		s = Session{
			WindowID:         m.Current.WindowID,
			TabID:            m.Current.TabID,
			SessionID:        fmt.Sprintf("%%%d", m.nextID),
			WorkingDirectory: dir,
		}
		m.Sessions = append(m.Sessions, s)
	default:
		s = m.addTabLocked(window, dir)
	}
	m.Opened = append(m.Opened, s)
	m.Current = s
	return s, nil
}

func (m *MockHost) ActivateTab(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Activated = append(m.Activated, s.TabID)
	if m.ActivateErr != nil {
		return m.ActivateErr
	}
	for _, existing := range m.Sessions {
		if existing.Same(s) {
			m.Current = existing
			return nil
		}
	}
	return fmt.Errorf("tab %s not found", s.TabID)
}

func (m *MockHost) SendText(ctx context.Context, s Session, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentText{TabID: s.TabID, Text: text})
	return nil
}

func (m *MockHost) CloseTab(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.CloseErrFor[s.TabID]; err != nil {
		return err
	}
	if m.CloseErr != nil {
		return m.CloseErr
	}
	m.Closed = append(m.Closed, s.TabID)
	for i, existing := range m.Sessions {
		if existing.Same(s) {
			m.Sessions = append(m.Sessions[:i], m.Sessions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("tab %s not found", s.TabID)
}

// SentTo returns everything typed into tabID, joined.
func (m *MockHost) SentTo(tabID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var parts []string
	for _, s := range m.Sent {
		if s.TabID == tabID {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "")
}

var _ Host = (*MockHost)(nil)
