package handoff

import (
	"context"
	"fmt"

	"github.com/badri/wtmcp/internal/checks"
	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/worktree"
	"github.com/badri/wtmcp/internal/wterr"
)

// Recommendation is the merge verdict of an analysis.
type Recommendation string

const (
	Ready       Recommendation = "ready"
	NeedsReview Recommendation = "needs-review"
	Blocked     Recommendation = "blocked"
)

// Analysis describes a worktree's changes against its base branch.
type Analysis struct {
	Worktree       string         `json:"worktree"`
	Path           string         `json:"path"`
	Branch         string         `json:"branch,omitempty"`
	Base           string         `json:"base"`
	Clean          bool           `json:"clean"`
	Uncommitted    []string       `json:"uncommitted"`
	Diff           git.DiffStats  `json:"diff"`
	CommitsAhead   int            `json:"commits_ahead"`
	CommitsBehind  int            `json:"commits_behind"`
	Tests          checks.Outcome `json:"tests"`
	Lint           checks.Outcome `json:"lint"`
	Recommendation Recommendation `json:"recommendation"`
	Reasons        []string       `json:"reasons"`
}

// Analyze computes a fresh Analysis for the named worktree. The diff is
// taken against the current merge-base with the base branch, and the
// project's test and lint commands are run inside the worktree.
func (c *Coordinator) Analyze(ctx context.Context, name string) (*Analysis, error) {
	wt, err := c.mgr.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if wt.Main {
		return nil, wterr.E(wterr.InvalidArgument, wterr.Op("handoff.Analyze"), "the main worktree has no base to compare against")
	}
	return c.analyze(ctx, wt)
}

func (c *Coordinator) analyze(ctx context.Context, wt worktree.Worktree) (*Analysis, error) {
	repo := c.mgr.Repo()
	a := &Analysis{
		Worktree:    wt.Name,
		Path:        wt.Path,
		Branch:      wt.Branch,
		Base:        wt.BaseBranch,
		Uncommitted: []string{},
	}

	dirty, err := repo.Status(ctx, wt.Path)
	if err != nil {
		return nil, err
	}
	if len(dirty) > 0 {
		a.Uncommitted = dirty
	}
	a.Clean = len(dirty) == 0

	if a.Diff, err = repo.DiffStats(ctx, wt.Path, wt.BaseBranch); err != nil {
		return nil, err
	}
	if a.CommitsAhead, err = repo.CommitsAheadOfBase(ctx, wt.Ref(), wt.BaseBranch); err != nil {
		return nil, err
	}
	if a.CommitsBehind, err = repo.CommitsBehind(ctx, wt.Ref(), wt.BaseBranch); err != nil {
		return nil, err
	}

	plan := checks.Discover(wt.Path, c.mgr.Settings())
	a.Tests = c.checks.RunTests(ctx, wt.Path, plan)
	a.Lint = c.checks.RunLint(ctx, wt.Path, plan)

	a.Recommendation, a.Reasons = Recommend(a)
	c.log.Info("analyzed", "worktree", wt.Name, "recommendation", a.Recommendation,
		"files", a.Diff.FilesChanged, "tests", a.Tests.Status, "lint", a.Lint.Status)
	return a, nil
}

// Recommend derives the verdict of a. A dirty tree or failing tests block.
// Ready needs a clean tree with changes, no failing check and at least one
// check that actually passed. Everything else needs review.
func Recommend(a *Analysis) (Recommendation, []string) {
	var blockers, concerns []string

	if !a.Clean {
		blockers = append(blockers, fmt.Sprintf("%d uncommitted change(s)", len(a.Uncommitted)))
	}
	if a.Tests.Status == checks.Fail {
		blockers = append(blockers, "tests failed: "+a.Tests.Reason)
	}
	if len(blockers) > 0 {
		return Blocked, blockers
	}

	if a.Diff.FilesChanged == 0 {
		concerns = append(concerns, "no changes against "+a.Base)
	}
	if a.Lint.Status == checks.Fail {
		concerns = append(concerns, "lint failed: "+a.Lint.Reason)
	}
	if a.Tests.Status != checks.Pass && a.Lint.Status != checks.Pass {
		concerns = append(concerns, "no check passed; nothing verified the changes")
	}
	if len(concerns) > 0 {
		return NeedsReview, concerns
	}

	reasons := []string{
		fmt.Sprintf("%d file(s) changed, %s", a.Diff.FilesChanged, describeAhead(a.CommitsAhead, a.Base)),
	}
	if a.Tests.Status == checks.Pass {
		reasons = append(reasons, "tests passed")
	}
	if a.Lint.Status == checks.Pass {
		reasons = append(reasons, "lint passed")
	}
	if a.CommitsBehind > 0 {
		reasons = append(reasons, fmt.Sprintf("%s has moved on by %d commit(s); the merge commit will reconcile them", a.Base, a.CommitsBehind))
	}
	return Ready, reasons
}
