package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/checks"
	"github.com/badri/wtmcp/internal/handoff"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <worktree>",
	Short: "Diff, test and lint a worktree against its base branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var notifyAutoMerge bool

var notifyCmd = &cobra.Command{
	Use:   "notify <worktree> <summary>",
	Short: "Report a finished task, optionally merging it when ready",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runNotify,
}

var sessionIDCmd = &cobra.Command{
	Use:   "session-id",
	Short: "Print the current assistant session id",
	Args:  cobra.NoArgs,
	RunE:  runSessionID,
}

func init() {
	notifyCmd.Flags().BoolVar(&notifyAutoMerge, "auto-merge", false, "Merge into the base branch and close the worktree when ready")
	rootCmd.AddCommand(analyzeCmd, notifyCmd, sessionIDCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	res, err := a.Coordinator.Analyze(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}
	printAnalysis(out, res)
	return nil
}

func printAnalysis(w io.Writer, res *handoff.Analysis) {
	fmt.Fprintf(w, "%s (%s → %s)\n", tableTitleStyle.Render(res.Worktree), res.Branch, res.Base)
	fmt.Fprintf(w, "  Changes:  %d file(s), +%d -%d\n", res.Diff.FilesChanged, res.Diff.Insertions, res.Diff.Deletions)
	fmt.Fprintf(w, "  Commits:  %d ahead, %d behind\n", res.CommitsAhead, res.CommitsBehind)
	if !res.Clean {
		fmt.Fprintf(w, "  Uncommitted: %s\n", strings.Join(res.Uncommitted, ", "))
	}
	fmt.Fprintf(w, "  Tests:    %s\n", describeOutcome(res.Tests))
	fmt.Fprintf(w, "  Lint:     %s\n", describeOutcome(res.Lint))
	fmt.Fprintf(w, "  Verdict:  %s\n", res.Recommendation)
	for _, r := range res.Reasons {
		fmt.Fprintf(w, "    - %s\n", r)
	}
}

func describeOutcome(o checks.Outcome) string {
	if len(o.Commands) == 0 {
		return string(o.Status) + tableDimStyle.Render(" (nothing to run)")
	}
	s := fmt.Sprintf("%s (%s)", o.Status, strings.Join(o.Commands, "; "))
	if o.Reason != "" {
		s += " " + o.Reason
	}
	return s
}

func runNotify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadTerminalApp(ctx)
	if err != nil {
		return err
	}
	res, err := a.Coordinator.NotifyTaskComplete(ctx, handoff.Report{
		Worktree:  args[0],
		Summary:   strings.Join(args[1:], " "),
		AutoMerge: notifyAutoMerge,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}

	switch res.Action {
	case handoff.ActionMerged:
		fmt.Fprintf(out, "Merged %s into %s at %s\n", res.Branch, res.Merge.Base, truncate(res.Merge.Commit, 12))
		if res.Close != nil {
			fmt.Fprintf(out, "Closed worktree %s\n", res.Close.Name)
		}
	case handoff.ActionManualReview:
		fmt.Fprintln(out, "Not merged; review needed")
		if res.Analysis != nil {
			printAnalysis(out, res.Analysis)
		}
	default:
		fmt.Fprintf(out, "Reported completion of %s\n", res.Worktree)
	}
	if res.DeliveredTo != "" {
		fmt.Fprintf(out, "  Main session notified in tab %s\n", res.DeliveredTo)
	}
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}

func runSessionID(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	res := a.Detector.Detect(ctx)
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	fmt.Fprintln(out, res.SessionID)
	return nil
}
