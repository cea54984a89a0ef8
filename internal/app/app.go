// Package app wires configuration, git, the terminal backend and the
// worktree services into one value shared by the tool server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/badri/wtmcp/internal/checks"
	"github.com/badri/wtmcp/internal/config"
	"github.com/badri/wtmcp/internal/doctor"
	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/handoff"
	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/mcpserver"
	"github.com/badri/wtmcp/internal/monitor"
	"github.com/badri/wtmcp/internal/project"
	"github.com/badri/wtmcp/internal/session"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/worktree"
)

// App holds the wired components.
type App struct {
	Config *config.Config
	Exec   executor.CommandExecutor
	// Host is nil when no terminal was detected; HostErr says why.
	Host    terminal.Host
	HostErr error
	Index   *terminal.Index

	Dir      string
	Repo     *git.Repo
	Settings *project.Settings

	Detector    *session.Detector
	Launcher    *session.Launcher
	Checks      *checks.Runner
	Manager     *worktree.Manager
	Coordinator *handoff.Coordinator

	log *slog.Logger
}

// Options override pieces of the wiring, mostly for tests.
type Options struct {
	// Dir is where the repository is looked up. Defaults to the working directory.
	Dir string
	// Exec runs git and terminal commands. Defaults to a RealExecutor
	// bounded by the configured command timeout.
	Exec executor.CommandExecutor
	// Host replaces terminal detection.
	Host terminal.Host
	// Notifier replaces desktop notifications.
	Notifier monitor.Notifier
}

// New wires an App from cfg. Failing to find a terminal is not an error:
// it is recorded in HostErr and surfaces when a tool needs the terminal.
// Project settings that fail to parse are.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Dir: opts.Dir, Exec: opts.Exec, log: logger.WithComponent("app")}
	if a.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		a.Dir = wd
	}
	if a.Exec == nil {
		a.Exec = executor.NewRealExecutor(cfg.CommandTimeout)
	}

	if opts.Host != nil {
		a.Host = opts.Host
	} else {
		a.Host, a.HostErr = doctor.DetectHost(cfg, a.Exec)
	}
	a.Index = terminal.NewIndex(a.Host)

	a.Repo = git.NewRepo(a.Dir, a.Exec)
	a.Settings = &project.Settings{}
	if a.Repo.IsGitRepo(ctx, a.Dir) {
		root, err := a.Repo.MainRoot(ctx)
		if err != nil {
			return nil, err
		}
		settings, err := project.Load(root)
		if err != nil {
			return nil, err
		}
		a.Settings = settings
	} else {
		a.log.Warn("not inside a git repository", "dir", a.Dir)
	}

	a.Detector = session.NewDetector(a.Exec, cfg.SessionID)
	a.Launcher = session.NewLauncher(session.LaunchOptions{
		Command:         cfg.ClaudeCommand,
		ServerName:      cfg.ServerName,
		SkipPermissions: cfg.SkipPermissions,
		ShareSession:    cfg.EnableSessionSharing,
		MCPConfigPath:   cfg.MCPConfigPath,
		AdditionalArgs:  cfg.AdditionalArgs,
	}, a.Detector)

	// Checks carry their own timeouts instead of the per-command one.
	a.Checks = checks.NewRunner(executor.NewRealExecutor(0), cfg.TestTimeout, cfg.LintTimeout)

	location, err := terminal.ParseLocation(cfg.OpenLocation)
	if err != nil {
		return nil, err
	}
	a.Manager = worktree.New(worktree.Options{
		Repo:     a.Repo,
		Index:    a.Index,
		Settings: a.Settings,
		Launcher: a.Launcher,
		Hooks:    a.Checks,
		Location: location,
	})

	notifier := opts.Notifier
	if notifier == nil {
		notifier = monitor.Discard
		if cfg.Notify {
			notifier = monitor.Desktop{}
		}
	}
	a.Coordinator = handoff.New(handoff.Options{
		Manager:        a.Manager,
		Checks:         a.Checks,
		Notifier:       notifier,
		PushAfterMerge: cfg.PushAfterMerge,
	})
	return a, nil
}

// Capabilities probes the terminal and the assistant CLI.
func (a *App) Capabilities(ctx context.Context) doctor.Capabilities {
	return doctor.Probe(ctx, a.Host, a.HostErr, a.Launcher)
}

// RequireTerminal fails with wterr.TerminalUnavailable unless the terminal
// answers now.
func (a *App) RequireTerminal(ctx context.Context) error {
	return a.Index.Probe(ctx)
}

// Server builds the tool server after probing capabilities.
func (a *App) Server(ctx context.Context, version string) *mcpserver.Server {
	caps := a.Capabilities(ctx)
	a.log.Info("startup probe", "host", caps.Host, "terminal", caps.Terminal,
		"assistant", caps.Assistant, "reason", caps.Reason)

	location, _ := terminal.ParseLocation(a.Config.OpenLocation)
	return mcpserver.New(mcpserver.Deps{
		Manager:      a.Manager,
		Coordinator:  a.Coordinator,
		Detector:     a.Detector,
		Capabilities: caps,
		Defaults:     mcpserver.Defaults{Location: location, SwitchBack: a.Config.SwitchBack},
	}, a.Config.ServerName, version)
}

// DoctorEnv describes the App to the doctor checks.
func (a *App) DoctorEnv() doctor.Env {
	return doctor.Env{
		Config:   a.Config,
		Exec:     a.Exec,
		Host:     a.Host,
		HostErr:  a.HostErr,
		Launcher: a.Launcher,
		Dir:      a.Dir,
	}
}
