package app

import (
	"context"
	"errors"
	"testing"

	"github.com/badri/wtmcp/internal/config"
	"github.com/badri/wtmcp/internal/git/gittest"
	"github.com/badri/wtmcp/internal/monitor"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/wterr"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	return cfg
}

func TestNewLoadsProjectSettings(t *testing.T) {
	repoDir := gittest.InitRepo(t)
	gittest.WriteFile(t, repoDir, ".wtmcp.yaml", "base_branch: develop\ntest_command: make check\n")

	a, err := New(context.Background(), testConfig(t), Options{
		Dir:      repoDir,
		Host:     terminal.NewMockHost(repoDir),
		Notifier: &monitor.Recorder{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Settings.BaseBranch != "develop" || a.Settings.TestCommand != "make check" {
		t.Errorf("settings not loaded: %+v", a.Settings)
	}
	if a.Manager.Settings() != a.Settings {
		t.Error("manager does not share the loaded settings")
	}
}

func TestNewOutsideRepository(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), Options{
		Dir:  t.TempDir(),
		Host: terminal.NewMockHost("/"),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Settings == nil || a.Settings.Path != "" {
		t.Errorf("expected empty settings, got %+v", a.Settings)
	}
}

func TestNewRejectsBadSettings(t *testing.T) {
	repoDir := gittest.InitRepo(t)
	gittest.WriteFile(t, repoDir, ".wtmcp.yaml", "base_branch: [unclosed\n")

	if _, err := New(context.Background(), testConfig(t), Options{Dir: repoDir, Host: terminal.NewMockHost(repoDir)}); err == nil {
		t.Error("expected an error for a malformed settings file")
	}
}

func TestServerToolsFollowTerminal(t *testing.T) {
	repoDir := gittest.InitRepo(t)
	ctx := context.Background()

	host := terminal.NewMockHost(repoDir)
	a, err := New(ctx, testConfig(t), Options{Dir: repoDir, Host: host})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := len(a.Server(ctx, "test").ToolNames()); got != 8 {
		t.Errorf("with a terminal: %d tools, want 8", got)
	}

	host.PingErr = errors.New("gone")
	if got := len(a.Server(ctx, "test").ToolNames()); got != 0 {
		t.Errorf("without a terminal: %d tools, want 0", got)
	}
	if err := a.RequireTerminal(ctx); !wterr.Is(err, wterr.TerminalUnavailable) {
		t.Errorf("RequireTerminal = %v, want TerminalUnavailable", err)
	}
}
