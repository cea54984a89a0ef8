package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/wterr"
)

// CreateRequest describes a new worktree.
type CreateRequest struct {
	Feature     string
	Branch      string
	Folder      string
	Description string
	// StartSession types the delegated session command into the new tab.
	StartSession bool
	// ReuseBranch checks out an existing branch instead of failing.
	ReuseBranch bool
	Location    terminal.Location
	// SwitchBack refocuses the caller's tab once the new tab is open.
	SwitchBack bool
}

// CreateResult reports a created worktree.
type CreateResult struct {
	Worktree       Worktree         `json:"worktree"`
	Tab            terminal.Session `json:"tab"`
	CreatedBranch  bool             `json:"created_branch"`
	SessionStarted bool             `json:"session_started"`
	Command        string           `json:"command,omitempty"`
	Warnings       Warnings         `json:"warnings,omitempty"`
}

func validateFolder(op wterr.Op, folder string) error {
	switch {
	case strings.TrimSpace(folder) == "":
		return wterr.E(wterr.InvalidArgument, op, "worktree_folder is required")
	case folder == "." || folder == "..":
		return wterr.E(wterr.InvalidArgument, op, fmt.Sprintf("invalid worktree folder %q", folder))
	case strings.ContainsAny(folder, `/\`):
		return wterr.E(wterr.InvalidArgument, op, fmt.Sprintf("worktree folder %q must be a plain name", folder))
	}
	return nil
}

// Create adds a worktree as a sibling of the main repository and opens a
// tab on it. A failure after the worktree exists removes it again.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	op := wterr.Op("worktree.Create")

	if strings.TrimSpace(req.Feature) == "" || strings.TrimSpace(req.Branch) == "" || strings.TrimSpace(req.Description) == "" {
		return nil, wterr.E(wterr.InvalidArgument, op, "feature_name, branch_name and description are required")
	}
	if err := validateFolder(op, req.Folder); err != nil {
		return nil, err
	}
	if !m.repo.IsGitRepo(ctx, m.repo.Dir()) {
		return nil, wterr.E(wterr.VcsOperationFailed, op, m.repo.Dir()+" is not a git repository")
	}

	root, err := m.repo.MainRoot(ctx)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(filepath.Dir(root), req.Folder)
	if _, err := os.Stat(path); err == nil {
		return nil, wterr.E(wterr.InvalidArgument, op, fmt.Sprintf("target directory %s already exists", path))
	}

	exists := m.repo.BranchExists(ctx, req.Branch)
	if exists && !req.ReuseBranch {
		return nil, wterr.E(wterr.BranchConflict, op,
			fmt.Sprintf("branch %s already exists", req.Branch),
			wterr.Details{"pass reuse_branch to check it out in the new worktree"})
	}

	base, err := m.startingPoint(ctx, root)
	if err != nil {
		return nil, err
	}

	log := m.log.With("branch", req.Branch, "path", path)
	if err := m.repo.AddWorktree(ctx, path, req.Branch, base, !exists); err != nil {
		return nil, err
	}
	log.Info("worktree added", "base", base, "new_branch", !exists)

	res := &CreateResult{CreatedBranch: !exists}
	rollback := func(cause error, tab *terminal.Session) error {
		errs := []error{cause}
		if tab != nil {
			if err := m.host.CloseTab(ctx, *tab); err != nil {
				errs = append(errs, fmt.Errorf("rollback: closing tab %s: %w", tab.TabID, err))
			}
		}
		if err := m.repo.RemoveWorktree(ctx, path, true); err != nil {
			errs = append(errs, fmt.Errorf("rollback: removing worktree: %w", err))
		}
		if res.CreatedBranch {
			if err := m.repo.DeleteBranch(ctx, req.Branch); err != nil {
				errs = append(errs, fmt.Errorf("rollback: deleting branch: %w", err))
			}
		}
		log.Warn("create rolled back", "error", cause)
		return errors.Join(errs...)
	}

	if res.CreatedBranch || m.keepsNoBase(ctx, req.Branch) {
		if err := m.repo.SetBranchConfig(ctx, req.Branch, git.ConfigBase, base); err != nil {
			return nil, rollback(err, nil)
		}
	}
	if err := m.repo.SetBranchConfig(ctx, req.Branch, git.ConfigDescription, req.Description); err != nil {
		return nil, rollback(err, nil)
	}

	if err := LinkClaudeDir(root, path); err != nil {
		res.Warnings.Add("linking .claude directory: %v", err)
	}
	m.runHooks(ctx, m.settings.OnCreate(), path, req.Branch, &res.Warnings)

	origin, originErr := m.host.CurrentTab(ctx)

	location := req.Location
	if location == "" {
		location = m.location
	}
	tab, err := m.host.OpenTab(ctx, path, location)
	if err != nil {
		if !wterr.Is(err, wterr.OperationTimedOut) {
			err = wterr.E(wterr.TerminalUnavailable, op, "opening tab", err)
		}
		return nil, rollback(err, nil)
	}
	res.Tab = tab

	if req.StartSession {
		m.startSession(ctx, tab, req.Description, res)
	}

	if req.SwitchBack {
		switch {
		case originErr != nil:
			res.Warnings.Add("switch back skipped: %v", originErr)
		default:
			if err := m.host.ActivateTab(ctx, origin); err != nil {
				res.Warnings.Add("switching back to tab %s: %v", origin.TabID, err)
			}
		}
	}

	info := git.WorktreeInfo{Path: path, Branch: req.Branch}
	res.Worktree = m.describe(ctx, info)
	res.Worktree.Tabs = []terminal.TabBinding{{Session: tab, WorktreePath: terminal.NormalizePath(path)}}
	log.Info("worktree created", "tab", tab.TabID, "session_started", res.SessionStarted, "warnings", len(res.Warnings))
	return res, nil
}

// startingPoint is the branch new worktrees fork from: the project base
// branch when set, else the branch checked out in the main worktree.
func (m *Manager) startingPoint(ctx context.Context, root string) (string, error) {
	if m.settings.BaseBranch != "" {
		if !m.repo.BranchExists(ctx, m.settings.BaseBranch) {
			return "", wterr.E(wterr.InvalidArgument, wterr.Op("worktree.Create"),
				fmt.Sprintf("configured base_branch %s does not exist", m.settings.BaseBranch))
		}
		return m.settings.BaseBranch, nil
	}
	branch, err := m.repo.CurrentBranch(ctx, root)
	if err != nil {
		return "", err
	}
	if branch == "HEAD" {
		return m.repo.DefaultBranch(ctx)
	}
	return branch, nil
}

func (m *Manager) keepsNoBase(ctx context.Context, branch string) bool {
	base, err := m.repo.BranchConfig(ctx, branch, git.ConfigBase)
	return err == nil && base == ""
}

func (m *Manager) startSession(ctx context.Context, tab terminal.Session, description string, res *CreateResult) {
	if m.launcher == nil || !m.launcher.Available() {
		res.Warnings.Add("assistant CLI not found on PATH; opened a plain tab")
		return
	}
	cmd := m.launcher.Command(ctx, description)
	if err := m.host.SendText(ctx, tab, cmd+"\n"); err != nil {
		res.Warnings.Add("starting session in tab %s: %v", tab.TabID, err)
		return
	}
	res.Command = cmd
	res.SessionStarted = true
}

func (m *Manager) runHooks(ctx context.Context, hooks []string, path, branch string, warnings *Warnings) {
	if m.hooks == nil {
		return
	}
	env := map[string]string{
		"WTMCP_WORKTREE": path,
		"WTMCP_BRANCH":   branch,
	}
	for _, hook := range hooks {
		if err := m.hooks.RunHook(ctx, path, hook, env); err != nil {
			m.log.Warn("hook failed", "hook", hook, "error", err)
			warnings.Add("%v", err)
		}
	}
}

// LinkClaudeDir symlinks the main repository's .claude directory into a new
// worktree so delegated sessions share its settings. It is a no-op when the
// source is missing or the worktree already has its own.
func LinkClaudeDir(root, worktreePath string) error {
	src := filepath.Join(root, ".claude")
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return nil
	}
	dst := filepath.Join(worktreePath, ".claude")
	if _, err := os.Lstat(dst); err == nil {
		return nil
	}
	return os.Symlink(src, dst)
}

// OpenResult reports the tabs of an opened worktree.
type OpenResult struct {
	Worktree Worktree `json:"worktree"`
	// Reused is true when existing tabs were returned instead of opening one.
	Reused   bool     `json:"reused"`
	Warnings Warnings `json:"warnings,omitempty"`
}

// Open opens a tab on an existing worktree. Without force, a worktree that
// already has tabs is returned as is. Pane locations always split.
func (m *Manager) Open(ctx context.Context, name string, force bool, location terminal.Location) (*OpenResult, error) {
	op := wterr.Op("worktree.Open")

	info, err := m.find(ctx, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(info.Path); err != nil {
		return nil, wterr.E(wterr.WorktreeNotFound, op,
			fmt.Sprintf("worktree %s is registered but %s is missing", name, info.Path),
			wterr.Details{"run git worktree prune to clean up"})
	}
	if location == "" {
		location = m.location
	}

	res := &OpenResult{Worktree: m.describe(ctx, info)}
	bindings, err := m.resolver.FindTabsFor(ctx, info.Path)
	if err != nil {
		return nil, err
	}
	if len(bindings) > 0 && !force && (location == terminal.NewTab || location == terminal.NewWindow) {
		res.Reused = true
		res.Worktree.Tabs = bindings
		return res, nil
	}

	tab, err := m.host.OpenTab(ctx, info.Path, location)
	if err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return nil, err
		}
		return nil, wterr.E(wterr.TerminalUnavailable, op, "opening tab", err)
	}
	m.log.Info("worktree opened", "name", name, "tab", tab.TabID, "force", force)

	opened := terminal.TabBinding{Session: tab, WorktreePath: terminal.NormalizePath(info.Path)}
	res.Worktree.Tabs = append([]terminal.TabBinding{opened}, bindings...)
	return res, nil
}
