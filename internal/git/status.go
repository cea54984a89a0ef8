package git

import (
	"context"
	"strconv"
	"strings"

	"github.com/badri/wtmcp/internal/wterr"
)

// DiffStats summarizes a branch's changes against its base.
type DiffStats struct {
	FilesChanged int      `json:"files_changed"`
	Insertions   int      `json:"insertions"`
	Deletions    int      `json:"deletions"`
	Files        []string `json:"files,omitempty"`
}

// Status returns the porcelain status lines for path, untracked files included.
func (r *Repo) Status(ctx context.Context, path string) ([]string, error) {
	out, err := r.run(ctx, path, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// IsClean reports whether path has no staged, unstaged or untracked changes.
func (r *Repo) IsClean(ctx context.Context, path string) (bool, error) {
	lines, err := r.Status(ctx, path)
	if err != nil {
		return false, err
	}
	return len(lines) == 0, nil
}

// Upstream returns the upstream ref of branch, e.g. "origin/feature/x".
// ok is false when no upstream is configured.
func (r *Repo) Upstream(ctx context.Context, path, branch string) (upstream string, ok bool, err error) {
	out, err := r.run(ctx, path, "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}")
	if err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return "", false, err
		}
		return "", false, nil
	}
	return strings.TrimSpace(out), true, nil
}

// IsPushed reports whether branch's tip is contained in its upstream. A
// branch without an upstream counts as pushed only when it has no commits
// ahead of base.
func (r *Repo) IsPushed(ctx context.Context, path, branch, base string) (bool, error) {
	upstream, ok, err := r.Upstream(ctx, path, branch)
	if err != nil {
		return false, err
	}
	if !ok {
		ahead, err := r.CommitsAheadOfBase(ctx, branch, base)
		if err != nil {
			return false, err
		}
		return ahead == 0, nil
	}
	unpushed, err := r.count(ctx, path, "rev-list", "--count", upstream+".."+branch)
	if err != nil {
		return false, err
	}
	return unpushed == 0, nil
}

// CommitsAheadOfBase counts commits on branch that are not reachable from
// base. The comparison uses the current refs, so a moved base is taken into
// account on every call.
func (r *Repo) CommitsAheadOfBase(ctx context.Context, branch, base string) (int, error) {
	return r.count(ctx, r.dir, "rev-list", "--count", base+".."+branch)
}

// DiffStats compares HEAD at path with the merge-base of HEAD and base.
func (r *Repo) DiffStats(ctx context.Context, path, base string) (DiffStats, error) {
	out, err := r.run(ctx, path, "diff", "--numstat", base+"...HEAD")
	if err != nil {
		return DiffStats{}, err
	}
	return parseNumstat(out), nil
}

// parseNumstat parses `git diff --numstat` output. Binary files report "-"
// for both counts and contribute a changed file with no line counts.
func parseNumstat(out string) DiffStats {
	var stats DiffStats
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		stats.FilesChanged++
		stats.Files = append(stats.Files, fields[2])
		if n, err := strconv.Atoi(fields[0]); err == nil {
			stats.Insertions += n
		}
		if n, err := strconv.Atoi(fields[1]); err == nil {
			stats.Deletions += n
		}
	}
	return stats
}
