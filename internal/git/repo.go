// Package git inspects and mutates the repository through the git CLI.
//
// Every call shells out to git as a subprocess. A non-zero exit surfaces as
// wterr.VcsOperationFailed carrying the failed subcommand and its stderr; a
// call that overruns the executor timeout surfaces as wterr.OperationTimedOut.
package git

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/wterr"
)

// Repo runs git commands against one repository.
type Repo struct {
	dir  string
	exec executor.CommandExecutor
}

// NewRepo returns a Repo rooted at dir. dir may be any path inside the
// repository or one of its worktrees.
func NewRepo(dir string, exec executor.CommandExecutor) *Repo {
	return &Repo{dir: dir, exec: exec}
}

// Dir returns the directory the Repo was opened at.
func (r *Repo) Dir() string {
	return r.dir
}

// run executes git -C dir args... and returns trimmed stdout.
func (r *Repo) run(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-C", dir}, args...)
	stdout, stderr, err := r.exec.Run(ctx, "", "git", full...)
	if err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return "", err
		}
		msg := strings.TrimSpace(string(stderr))
		var details wterr.Details
		if msg != "" {
			details = strings.Split(msg, "\n")
		}
		return "", wterr.E(wterr.VcsOperationFailed, wterr.Op("git"),
			"git "+subcommand(args)+" failed", details, err)
	}
	return strings.TrimRight(string(stdout), "\n"), nil
}

// subcommand names the git subcommand in args for error messages,
// e.g. "worktree add" or "status".
func subcommand(args []string) string {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if (a == "worktree" || a == "branch" || a == "config") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			return a + " " + args[i+1]
		}
		return a
	}
	return strings.Join(args, " ")
}

func (r *Repo) count(ctx context.Context, dir string, args ...string) (int, error) {
	out, err := r.run(ctx, dir, args...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, wterr.E(wterr.VcsOperationFailed, wterr.Op("git"), "parsing count from git "+subcommand(args), err)
	}
	return n, nil
}

// IsGitRepo reports whether path is inside a git work tree.
func (r *Repo) IsGitRepo(ctx context.Context, path string) bool {
	out, err := r.run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// MainRoot returns the root of the main working tree, even when the Repo
// was opened inside a linked worktree.
func (r *Repo) MainRoot(ctx context.Context) (string, error) {
	out, err := r.run(ctx, r.dir, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		return "", err
	}
	gitDir := filepath.Clean(strings.TrimSpace(out))
	if filepath.Base(gitDir) == ".git" {
		return filepath.Dir(gitDir), nil
	}
	return gitDir, nil
}

// SiblingPath returns the path of a worktree folder placed next to the main root.
func (r *Repo) SiblingPath(ctx context.Context, folder string) (string, error) {
	root, err := r.MainRoot(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(root), folder), nil
}

// CurrentBranch returns the branch checked out at path, or "HEAD" when detached.
func (r *Repo) CurrentBranch(ctx context.Context, path string) (string, error) {
	return r.run(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
}

// HasRemote reports whether the named remote is configured.
func (r *Repo) HasRemote(ctx context.Context, name string) bool {
	_, err := r.run(ctx, r.dir, "remote", "get-url", name)
	return err == nil
}
