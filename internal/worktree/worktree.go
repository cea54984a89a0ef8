// Package worktree manages the lifecycle of sibling git worktrees and the
// terminal tabs opened on them: create, open, close and list.
package worktree

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/project"
	"github.com/badri/wtmcp/internal/session"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/wterr"
)

// Worktree is a registered worktree and the tabs currently rooted in it.
type Worktree struct {
	Name        string                `json:"name"`
	Path        string                `json:"path"`
	Branch      string                `json:"branch,omitempty"`
	Head        string                `json:"head,omitempty"`
	BaseBranch  string                `json:"base_branch,omitempty"`
	Description string                `json:"description,omitempty"`
	Main        bool                  `json:"main,omitempty"`
	Detached    bool                  `json:"detached,omitempty"`
	Tabs        []terminal.TabBinding `json:"tabs"`
}

// Ref returns the branch name, or the commit when the worktree is detached.
func (w Worktree) Ref() string {
	if w.Branch != "" {
		return w.Branch
	}
	return w.Head
}

// Warnings collects best-effort failures that did not abort an operation.
type Warnings []string

// Add appends a formatted warning.
func (w *Warnings) Add(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// HookRunner runs project lifecycle hooks.
type HookRunner interface {
	RunHook(ctx context.Context, dir, command string, env map[string]string) error
}

// Options configure a Manager.
type Options struct {
	Repo     *git.Repo
	Index    *terminal.Index
	Settings *project.Settings
	// Launcher starts delegated sessions. Nil disables session start.
	Launcher *session.Launcher
	// Hooks runs on_create and on_close hooks. Nil skips them.
	Hooks HookRunner
	// Location is used when a request names no location.
	Location terminal.Location
}

// Manager drives worktree lifecycles.
type Manager struct {
	repo     *git.Repo
	resolver *terminal.Resolver
	host     terminal.Host
	settings *project.Settings
	launcher *session.Launcher
	hooks    HookRunner
	location terminal.Location
	log      *slog.Logger
}

// New returns a Manager.
func New(opts Options) *Manager {
	m := &Manager{
		repo:     opts.Repo,
		host:     opts.Index.Host(),
		settings: opts.Settings,
		launcher: opts.Launcher,
		hooks:    opts.Hooks,
		location: opts.Location,
		log:      logger.WithComponent("worktree"),
	}
	if m.settings == nil {
		m.settings = &project.Settings{}
	}
	if m.location == "" {
		m.location = terminal.NewTab
	}
	m.resolver = terminal.NewResolver(opts.Index, m)
	return m
}

// Repo returns the repository the manager works on.
func (m *Manager) Repo() *git.Repo { return m.repo }

// Resolver returns the tab resolver backed by this manager.
func (m *Manager) Resolver() *terminal.Resolver { return m.resolver }

// Settings returns the project settings.
func (m *Manager) Settings() *project.Settings { return m.settings }

// Locate implements terminal.Locator.
func (m *Manager) Locate(ctx context.Context, name string) (string, error) {
	info, err := m.find(ctx, name)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

// find looks a worktree up by folder name or path.
func (m *Manager) find(ctx context.Context, name string) (git.WorktreeInfo, error) {
	op := wterr.Op("worktree.find")
	if strings.TrimSpace(name) == "" {
		return git.WorktreeInfo{}, wterr.E(wterr.InvalidArgument, op, "worktree name is required")
	}

	infos, err := m.repo.ListWorktrees(ctx)
	if err != nil {
		return git.WorktreeInfo{}, err
	}
	target := ""
	if filepath.IsAbs(name) {
		target = terminal.NormalizePath(name)
	}
	for _, info := range infos {
		if info.Bare {
			continue
		}
		if info.Name() == name || (target != "" && terminal.NormalizePath(info.Path) == target) {
			return info, nil
		}
	}

	var known wterr.Details
	for _, info := range infos {
		if !info.Bare {
			known = append(known, "registered: "+info.Name())
		}
	}
	return git.WorktreeInfo{}, wterr.E(wterr.WorktreeNotFound, op,
		fmt.Sprintf("no registered worktree named %s", name), known)
}

// Get returns the named worktree with its base branch and description,
// without tab bindings.
func (m *Manager) Get(ctx context.Context, name string) (Worktree, error) {
	info, err := m.find(ctx, name)
	if err != nil {
		return Worktree{}, err
	}
	return m.describe(ctx, info), nil
}

func (m *Manager) describe(ctx context.Context, info git.WorktreeInfo) Worktree {
	wt := Worktree{
		Name:     info.Name(),
		Path:     info.Path,
		Branch:   info.Branch,
		Main:     info.Main,
		Detached: info.Detached,
		Head:     info.Head,
	}
	if info.Branch != "" && !info.Main {
		wt.BaseBranch = m.BaseOf(ctx, info.Branch)
		wt.Description, _ = m.repo.BranchConfig(ctx, info.Branch, git.ConfigDescription)
	}
	return wt
}

// BaseOf returns the branch that branch was created from. Branches created
// elsewhere fall back to the project base branch, then the default branch.
func (m *Manager) BaseOf(ctx context.Context, branch string) string {
	if base, err := m.repo.BranchConfig(ctx, branch, git.ConfigBase); err == nil && base != "" && m.repo.BranchExists(ctx, base) {
		return base
	}
	if m.settings.BaseBranch != "" {
		return m.settings.BaseBranch
	}
	if base, err := m.repo.DefaultBranch(ctx); err == nil {
		return base
	}
	return "main"
}

// List returns every registered worktree, main first, each with the tabs
// rooted in it. Sessions are listed once for the whole call.
func (m *Manager) List(ctx context.Context) ([]Worktree, error) {
	infos, err := m.repo.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, info := range infos {
		if !info.Bare {
			paths = append(paths, info.Path)
		}
	}
	bindings, err := m.resolver.BindAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	out := make([]Worktree, 0, len(paths))
	for _, info := range infos {
		if info.Bare {
			continue
		}
		wt := m.describe(ctx, info)
		wt.Tabs = bindings[info.Path]
		if wt.Tabs == nil {
			wt.Tabs = []terminal.TabBinding{}
		}
		out = append(out, wt)
	}
	return out, nil
}
