// Package handoff coordinates the end of a delegated session: it reports
// completion to the main session, judges whether a worktree is ready to
// merge, and optionally merges and closes it.
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/badri/wtmcp/internal/checks"
	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/merge"
	"github.com/badri/wtmcp/internal/monitor"
	"github.com/badri/wtmcp/internal/worktree"
	"github.com/badri/wtmcp/internal/wterr"
)

// CompleteMarker prefixes messages typed into the main session.
const CompleteMarker = "#WORKTREE_COMPLETE:"

// Options configure a Coordinator.
type Options struct {
	Manager *worktree.Manager
	Checks  *checks.Runner
	// Notifier receives desktop notifications. Nil disables them.
	Notifier monitor.Notifier
	// PushAfterMerge pushes the base branch after an automatic merge.
	PushAfterMerge bool
}

// Coordinator implements the completion protocol.
type Coordinator struct {
	mgr      *worktree.Manager
	checks   *checks.Runner
	notifier monitor.Notifier
	push     bool
	log      *slog.Logger
}

// New returns a Coordinator.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		mgr:      opts.Manager,
		checks:   opts.Checks,
		notifier: opts.Notifier,
		push:     opts.PushAfterMerge,
		log:      logger.WithComponent("handoff"),
	}
	if c.notifier == nil {
		c.notifier = monitor.Discard
	}
	return c
}

// Report is a delegated session's completion report.
type Report struct {
	Worktree  string
	Summary   string
	AutoMerge bool
}

// Action says what NotifyTaskComplete did.
type Action string

const (
	ActionNotified     Action = "notified"
	ActionMerged       Action = "auto_merged"
	ActionManualReview Action = "manual_review_required"
)

// CompletionResult is returned by NotifyTaskComplete.
type CompletionResult struct {
	Action       Action                `json:"action"`
	Worktree     string                `json:"worktree"`
	Branch       string                `json:"branch,omitempty"`
	CommitsAhead int                   `json:"commits_ahead"`
	Clean        bool                  `json:"clean"`
	Summary      string                `json:"summary"`
	DeliveredTo  string                `json:"delivered_to,omitempty"`
	Analysis     *Analysis             `json:"analysis,omitempty"`
	Merge        *merge.Result         `json:"merge,omitempty"`
	Close        *worktree.CloseResult `json:"close,omitempty"`
	Warnings     worktree.Warnings     `json:"warnings,omitempty"`
}

// NotifyTaskComplete surfaces a completion report. With AutoMerge it also
// analyzes the worktree and, only when the verdict is ready, merges it into
// its base and closes it through the normal close gates. A merge conflict is
// aborted and returned as MergeConflict with the worktree left in place.
func (c *Coordinator) NotifyTaskComplete(ctx context.Context, report Report) (*CompletionResult, error) {
	op := wterr.Op("handoff.NotifyTaskComplete")
	if strings.TrimSpace(report.Summary) == "" {
		return nil, wterr.E(wterr.InvalidArgument, op, "task_summary is required")
	}

	wt, err := c.mgr.Get(ctx, report.Worktree)
	if err != nil {
		return nil, err
	}
	if wt.Main {
		return nil, wterr.E(wterr.InvalidArgument, op, "completion must name a delegated worktree, not the main one")
	}

	repo := c.mgr.Repo()
	res := &CompletionResult{
		Action:   ActionNotified,
		Worktree: wt.Name,
		Branch:   wt.Branch,
		Summary:  report.Summary,
	}
	dirty, err := repo.Status(ctx, wt.Path)
	if err != nil {
		return nil, err
	}
	res.Clean = len(dirty) == 0
	if res.CommitsAhead, err = repo.CommitsAheadOfBase(ctx, wt.Ref(), wt.BaseBranch); err != nil {
		return nil, err
	}

	log := c.log.With("worktree", wt.Name, "branch", wt.Branch)
	log.Info("task complete", "summary", report.Summary, "auto_merge", report.AutoMerge)

	if err := monitor.TaskComplete(c.notifier, wt.Name, report.Summary); err != nil {
		res.Warnings.Add("desktop notification: %v", err)
	}

	if !report.AutoMerge {
		res.DeliveredTo = c.tellMainSession(ctx, wt.Name, report.Summary, &res.Warnings)
		return res, nil
	}

	analysis, err := c.analyze(ctx, wt)
	if err != nil {
		return nil, err
	}
	res.Analysis = analysis
	if analysis.Recommendation != Ready {
		res.Action = ActionManualReview
		res.DeliveredTo = c.tellMainSession(ctx, wt.Name, report.Summary, &res.Warnings)
		log.Info("auto merge skipped", "recommendation", analysis.Recommendation)
		return res, nil
	}

	merged, err := merge.IntoBase(ctx, repo, merge.Request{
		Worktree: wt.Name,
		Branch:   wt.Branch,
		Base:     wt.BaseBranch,
		Push:     c.push,
	})
	if err != nil {
		return nil, err
	}
	res.Action = ActionMerged
	res.Merge = merged
	for _, w := range merged.Warnings {
		res.Warnings.Add("%s", w)
	}

	closed, err := c.mgr.Close(ctx, wt.Name)
	if err != nil {
		res.Warnings.Add("merged but not closed (%s): %v", wterr.KindOf(err), err)
		return res, nil
	}
	res.Close = closed
	res.Warnings = append(res.Warnings, closed.Warnings...)
	return res, nil
}

// tellMainSession types the completion marker into a tab of the main
// worktree and returns that tab's id, or "" when none is open.
func (c *Coordinator) tellMainSession(ctx context.Context, name, summary string, warnings *worktree.Warnings) string {
	root, err := c.mgr.Repo().MainRoot(ctx)
	if err != nil {
		warnings.Add("locating main worktree: %v", err)
		return ""
	}
	resolver := c.mgr.Resolver()
	host := resolver.Index().Host()

	tabs, err := resolver.FindTabsFor(ctx, root)
	if err != nil {
		warnings.Add("listing tabs: %v", err)
		return ""
	}
	self, selfErr := host.CurrentTab(ctx)
	for _, tab := range tabs {
		if selfErr == nil && tab.Same(self) {
			continue
		}
		msg := CompleteMarker + name + "|" + oneLine(summary) + "\n"
		if err := host.SendText(ctx, tab.Session, msg); err != nil {
			warnings.Add("sending completion to tab %s: %v", tab.TabID, err)
			return ""
		}
		return tab.TabID
	}
	warnings.Add("no main session tab is open; completion was only logged")
	return ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseCompletion extracts the worktree and summary from a completion
// marker line.
func ParseCompletion(line string) (name, summary string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), CompleteMarker)
	if !found {
		return "", "", false
	}
	name, summary, _ = strings.Cut(rest, "|")
	return name, summary, name != ""
}

// describeAhead is used in reasons.
func describeAhead(n int, base string) string {
	if n == 1 {
		return fmt.Sprintf("1 commit ahead of %s", base)
	}
	return fmt.Sprintf("%d commits ahead of %s", n, base)
}
