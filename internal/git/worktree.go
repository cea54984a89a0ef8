package git

import (
	"context"
	"path/filepath"
	"strings"
)

// WorktreeInfo is one entry of `git worktree list --porcelain`.
type WorktreeInfo struct {
	Path     string
	Head     string
	Branch   string
	Detached bool
	Bare     bool
	Main     bool
}

// Name is the worktree's folder name.
func (w WorktreeInfo) Name() string {
	return filepath.Base(w.Path)
}

// AddWorktree checks out branch at path. With createBranch the branch is
// created from base; otherwise the existing branch is checked out.
func (r *Repo) AddWorktree(ctx context.Context, path, branch, base string, createBranch bool) error {
	args := []string{"worktree", "add"}
	if createBranch {
		args = append(args, "-b", branch, path)
		if base != "" {
			args = append(args, base)
		}
	} else {
		args = append(args, path, branch)
	}
	_, err := r.run(ctx, r.dir, args...)
	return err
}

// RemoveWorktree unregisters the worktree at path and deletes its directory.
func (r *Repo) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.run(ctx, r.dir, args...)
	return err
}

// ListWorktrees returns every registered worktree. The first entry is the
// main working tree.
func (r *Repo) ListWorktrees(ctx context.Context) ([]WorktreeInfo, error) {
	out, err := r.run(ctx, r.dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

func parseWorktreeList(out string) []WorktreeInfo {
	var (
		worktrees []WorktreeInfo
		current   *WorktreeInfo
	)
	flush := func() {
		if current != nil {
			current.Main = len(worktrees) == 0
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case current == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			current.Detached = true
		case line == "bare":
			current.Bare = true
		case line == "":
			flush()
		}
	}
	flush()
	return worktrees
}
