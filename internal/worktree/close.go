package worktree

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/wterr"
)

// CloseResult reports a closed worktree.
type CloseResult struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Branch        string   `json:"branch,omitempty"`
	BaseBranch    string   `json:"base_branch,omitempty"`
	CommitsAhead  int      `json:"commits_ahead"`
	BranchDeleted bool     `json:"branch_deleted"`
	TabsClosed    []string `json:"tabs_closed"`
	Warnings      Warnings `json:"warnings,omitempty"`
}

// Close removes a worktree once it is clean and its commits are safe: pushed
// to the upstream, or none ahead of base. The gates are checked in that order
// and the first unmet one aborts with nothing changed. The branch is deleted
// only when it carries no commits of its own.
//
// Every pane rooted in the worktree is closed. If the calling process runs in
// one of them, that pane is closed last.
func (m *Manager) Close(ctx context.Context, name string) (*CloseResult, error) {
	op := wterr.Op("worktree.Close")

	info, err := m.find(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.Main {
		return nil, wterr.E(wterr.InvalidArgument, op, "the main worktree cannot be closed")
	}
	if _, err := os.Stat(info.Path); err != nil {
		return nil, wterr.E(wterr.WorktreeNotFound, op,
			fmt.Sprintf("worktree %s is registered but %s is missing", name, info.Path),
			wterr.Details{"run git worktree prune to clean up"})
	}

	dirty, err := m.repo.Status(ctx, info.Path)
	if err != nil {
		return nil, err
	}
	if len(dirty) > 0 {
		return nil, wterr.E(wterr.NotClean, op,
			fmt.Sprintf("worktree %s has uncommitted changes", name), wterr.Details(dirty))
	}

	wt := m.describe(ctx, info)
	ref := wt.Ref()
	ahead, err := m.repo.CommitsAheadOfBase(ctx, ref, wt.BaseBranch)
	if err != nil {
		return nil, err
	}
	pushed, err := m.repo.IsPushed(ctx, info.Path, ref, wt.BaseBranch)
	if err != nil {
		return nil, err
	}
	if !pushed && ahead > 0 {
		return nil, wterr.E(wterr.NotPushed, op,
			fmt.Sprintf("%s has %d commit(s) ahead of %s that are not pushed", ref, ahead, wt.BaseBranch),
			wterr.Details{"push the branch or merge it before closing"})
	}

	res := &CloseResult{
		Name:         wt.Name,
		Path:         wt.Path,
		Branch:       wt.Branch,
		BaseBranch:   wt.BaseBranch,
		CommitsAhead: ahead,
		TabsClosed:   []string{},
	}
	log := m.log.With("name", wt.Name, "branch", wt.Branch)

	m.runHooks(ctx, m.settings.OnClose(), wt.Path, wt.Branch, &res.Warnings)

	var own *terminal.TabBinding
	bindings, err := m.resolver.FindTabsFor(ctx, wt.Path)
	if err != nil {
		res.Warnings.Add("listing tabs: %v", err)
	}
	self, selfErr := m.host.CurrentTab(ctx)
	for i, b := range bindings {
		if selfErr == nil && b.Same(self) {
			own = &bindings[i]
			continue
		}
		if err := m.host.CloseTab(ctx, b.Session); err != nil {
			res.Warnings.Add("closing tab %s: %v", b.TabID, err)
			continue
		}
		res.addClosed(b.TabID)
	}

	// Gates passed, so only ignored files can be left behind.
	if err := m.repo.RemoveWorktree(ctx, wt.Path, true); err != nil {
		return nil, err
	}
	log.Info("worktree removed", "commits_ahead", ahead)

	if wt.Branch != "" && ahead == 0 {
		if err := m.repo.DeleteBranch(ctx, wt.Branch); err != nil {
			res.Warnings.Add("deleting branch %s: %v", wt.Branch, err)
		} else {
			res.BranchDeleted = true
		}
	}

	if own != nil {
		if err := m.host.CloseTab(ctx, own.Session); err != nil {
			res.Warnings.Add("closing tab %s: %v", own.TabID, err)
		} else {
			res.addClosed(own.TabID)
		}
	}
	return res, nil
}

// addClosed records a closed tab once, however many of its panes were closed.
func (r *CloseResult) addClosed(tabID string) {
	if !slices.Contains(r.TabsClosed, tabID) {
		r.TabsClosed = append(r.TabsClosed, tabID)
	}
}
