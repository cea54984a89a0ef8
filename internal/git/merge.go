package git

import (
	"context"
	"strings"
)

// Checkout switches the working tree at path to branch.
func (r *Repo) Checkout(ctx context.Context, path, branch string) error {
	_, err := r.run(ctx, path, "checkout", branch)
	return err
}

// Merge merges branch into the branch checked out at path with a merge commit.
func (r *Repo) Merge(ctx context.Context, path, branch, message string) error {
	_, err := r.run(ctx, path, "merge", "--no-ff", "-m", message, branch)
	return err
}

// ConflictedFiles lists unmerged paths at path.
func (r *Repo) ConflictedFiles(ctx context.Context, path string) ([]string, error) {
	out, err := r.run(ctx, path, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, f := range strings.Split(out, "\n") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// AbortMerge abandons an in-progress merge at path.
func (r *Repo) AbortMerge(ctx context.Context, path string) error {
	_, err := r.run(ctx, path, "merge", "--abort")
	return err
}

// Push pushes ref to remote from path.
func (r *Repo) Push(ctx context.Context, path, remote, ref string) error {
	_, err := r.run(ctx, path, "push", remote, ref)
	return err
}

// PullFastForward fast-forwards the branch at path from its upstream.
func (r *Repo) PullFastForward(ctx context.Context, path string) error {
	_, err := r.run(ctx, path, "pull", "--ff-only")
	return err
}

// HeadCommit returns the commit checked out at path.
func (r *Repo) HeadCommit(ctx context.Context, path string) (string, error) {
	return r.run(ctx, path, "rev-parse", "HEAD")
}

// CommitsBehind counts commits on base that branch does not have yet.
func (r *Repo) CommitsBehind(ctx context.Context, branch, base string) (int, error) {
	return r.count(ctx, r.dir, "rev-list", "--count", branch+".."+base)
}
