package git

import (
	"context"
	"strings"

	"github.com/badri/wtmcp/internal/wterr"
)

// Keys recorded under branch.<name> in git config.
const (
	ConfigBase        = "wtmcpBase"
	ConfigDescription = "description"
)

// BranchExists reports whether a local branch named name exists.
func (r *Repo) BranchExists(ctx context.Context, name string) bool {
	_, err := r.run(ctx, r.dir, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// DeleteBranch force-deletes a local branch. Callers decide whether the
// branch carries unique work before calling.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.dir, "branch", "-D", name)
	return err
}

// DefaultBranch returns origin's HEAD branch, falling back to main, master,
// and finally the branch checked out in the main working tree.
func (r *Repo) DefaultBranch(ctx context.Context) (string, error) {
	if out, err := r.run(ctx, r.dir, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil {
		if b := strings.TrimPrefix(strings.TrimSpace(out), "origin/"); b != "" {
			return b, nil
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if r.BranchExists(ctx, candidate) {
			return candidate, nil
		}
	}
	root, err := r.MainRoot(ctx)
	if err != nil {
		return "", err
	}
	return r.CurrentBranch(ctx, root)
}

// SetBranchConfig records branch.<branch>.<key> = value.
func (r *Repo) SetBranchConfig(ctx context.Context, branch, key, value string) error {
	_, err := r.run(ctx, r.dir, "config", "branch."+branch+"."+key, value)
	return err
}

// BranchConfig reads branch.<branch>.<key>, returning "" when unset.
func (r *Repo) BranchConfig(ctx context.Context, branch, key string) (string, error) {
	out, err := r.run(ctx, r.dir, "config", "--get", "branch."+branch+"."+key)
	if err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return "", err
		}
		// git config --get exits 1 for a missing key.
		return "", nil
	}
	return strings.TrimSpace(out), nil
}
