// Package merge folds a finished worktree branch back into its base branch
// inside the main worktree.
package merge

import (
	"context"
	"fmt"

	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/wterr"
)

// Request describes one merge.
type Request struct {
	// Worktree names the worktree in the merge message.
	Worktree string
	Branch   string
	Base     string
	// Push pushes the base branch to Remote after merging, when Remote
	// is configured.
	Push   bool
	Remote string
}

// Result reports a completed merge.
type Result struct {
	Base     string   `json:"base"`
	Branch   string   `json:"branch"`
	Commit   string   `json:"commit"`
	Message  string   `json:"message"`
	Pushed   bool     `json:"pushed"`
	Warnings []string `json:"warnings,omitempty"`
}

// Message returns the merge commit message for branch from worktree.
func Message(branch, worktree string) string {
	return fmt.Sprintf("Merge %s: %s", branch, worktree)
}

// IntoBase merges req.Branch into req.Base with a merge commit. It runs in
// the main worktree, which must be clean. On conflict the merge is aborted
// and a MergeConflict error lists the conflicted files; the base branch is
// left as it was.
func IntoBase(ctx context.Context, repo *git.Repo, req Request) (*Result, error) {
	op := wterr.Op("merge.IntoBase")
	log := logger.WithComponent("merge").With("branch", req.Branch, "base", req.Base)

	if req.Branch == "" || req.Base == "" {
		return nil, wterr.E(wterr.InvalidArgument, op, "branch and base are required")
	}
	if req.Remote == "" {
		req.Remote = "origin"
	}

	root, err := repo.MainRoot(ctx)
	if err != nil {
		return nil, err
	}
	dirty, err := repo.Status(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(dirty) > 0 {
		return nil, wterr.E(wterr.NotClean, op,
			"main worktree has uncommitted changes; cannot merge", wterr.Details(dirty))
	}

	res := &Result{Base: req.Base, Branch: req.Branch, Message: Message(req.Branch, req.Worktree)}

	previous, err := repo.CurrentBranch(ctx, root)
	if err != nil {
		return nil, err
	}
	if previous != req.Base {
		if err := repo.Checkout(ctx, root, req.Base); err != nil {
			return nil, err
		}
	}
	restore := func() {
		if previous == req.Base || previous == "HEAD" {
			return
		}
		if err := repo.Checkout(ctx, root, previous); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("restoring %s in main worktree: %v", previous, err))
		}
	}

	hasRemote := req.Push && repo.HasRemote(ctx, req.Remote)
	if hasRemote {
		if _, ok, _ := repo.Upstream(ctx, root, req.Base); ok {
			if err := repo.PullFastForward(ctx, root); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("updating %s: %v", req.Base, err))
			}
		}
	}

	if err := repo.Merge(ctx, root, req.Branch, res.Message); err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return nil, err
		}
		files, listErr := repo.ConflictedFiles(ctx, root)
		if listErr != nil || len(files) == 0 {
			restore()
			return nil, err
		}
		if abortErr := repo.AbortMerge(ctx, root); abortErr != nil {
			log.Error("merge abort failed", "error", abortErr)
		}
		restore()
		log.Warn("merge conflict", "files", len(files))
		return nil, wterr.E(wterr.MergeConflict, op,
			fmt.Sprintf("merging %s into %s conflicts", req.Branch, req.Base), wterr.Details(files))
	}

	if res.Commit, err = repo.HeadCommit(ctx, root); err != nil {
		return nil, err
	}
	log.Info("merged", "commit", res.Commit)

	if hasRemote {
		if err := repo.Push(ctx, root, req.Remote, req.Base); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pushing %s: %v", req.Base, err))
		} else {
			res.Pushed = true
		}
	}
	restore()
	return res, nil
}
