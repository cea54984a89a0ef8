package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/monitor"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/worktree"
)

var createFlags struct {
	feature      string
	branch       string
	description  string
	startSession bool
	reuseBranch  bool
	location     string
	noSwitchBack bool
}

var createCmd = &cobra.Command{
	Use:   "create <folder>",
	Short: "Create a worktree beside the main repository and open it in a tab",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var closeCmd = &cobra.Command{
	Use:   "close <worktree>",
	Short: "Close a worktree's tabs and remove it (refuses unsaved work)",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

var openFlags struct {
	force    bool
	location string
}

var openCmd = &cobra.Command{
	Use:   "open <worktree>",
	Short: "Open an existing worktree in a terminal tab",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

var switchTab string

var switchCmd = &cobra.Command{
	Use:   "switch <worktree>",
	Short: "Focus a tab open on a worktree",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitch,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List worktrees and the tabs open in each",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	f := createCmd.Flags()
	f.StringVarP(&createFlags.branch, "branch", "b", "", "Branch to create (required)")
	f.StringVarP(&createFlags.description, "description", "d", "", "Task description (required)")
	f.StringVar(&createFlags.feature, "feature", "", "Feature name (defaults to the folder)")
	f.BoolVar(&createFlags.startSession, "start", false, "Start a delegated assistant session in the new tab")
	f.BoolVar(&createFlags.reuseBranch, "reuse-branch", false, "Check out the branch if it already exists")
	f.StringVar(&createFlags.location, "location", "", "new_tab, new_window, new_pane_right or new_pane_below")
	f.BoolVar(&createFlags.noSwitchBack, "no-switch-back", false, "Stay in the new tab")
	_ = createCmd.MarkFlagRequired("branch")
	_ = createCmd.MarkFlagRequired("description")

	openCmd.Flags().BoolVar(&openFlags.force, "force", false, "Open another tab even if one is open")
	openCmd.Flags().StringVar(&openFlags.location, "location", "", "new_tab, new_window, new_pane_right or new_pane_below")

	switchCmd.Flags().StringVar(&switchTab, "tab", "", "Tab id to focus when several are open")

	rootCmd.AddCommand(createCmd, closeCmd, openCmd, switchCmd, listCmd)
}

func parseLocation(s string) (terminal.Location, error) {
	if s == "" {
		return "", nil
	}
	return terminal.ParseLocation(s)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadTerminalApp(ctx)
	if err != nil {
		return err
	}
	loc, err := parseLocation(createFlags.location)
	if err != nil {
		return err
	}
	feature := createFlags.feature
	if feature == "" {
		feature = args[0]
	}

	res, err := a.Manager.Create(ctx, worktree.CreateRequest{
		Feature:      feature,
		Branch:       createFlags.branch,
		Folder:       args[0],
		Description:  createFlags.description,
		StartSession: createFlags.startSession,
		ReuseBranch:  createFlags.reuseBranch,
		Location:     loc,
		SwitchBack:   a.Config.SwitchBack && !createFlags.noSwitchBack,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}

	fmt.Fprintf(out, "Created worktree %s\n", res.Worktree.Name)
	fmt.Fprintf(out, "  Path:   %s\n", res.Worktree.Path)
	fmt.Fprintf(out, "  Branch: %s (from %s)\n", res.Worktree.Branch, res.Worktree.BaseBranch)
	fmt.Fprintf(out, "  Tab:    %s\n", res.Tab.TabID)
	if res.SessionStarted {
		fmt.Fprintf(out, "  Session started: %s\n", truncate(res.Command, 60))
	}
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadTerminalApp(ctx)
	if err != nil {
		return err
	}
	res, err := a.Manager.Close(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}

	fmt.Fprintf(out, "Closed worktree %s\n", res.Name)
	if len(res.TabsClosed) > 0 {
		fmt.Fprintf(out, "  Tabs closed: %s\n", strings.Join(res.TabsClosed, ", "))
	}
	switch {
	case res.BranchDeleted:
		fmt.Fprintf(out, "  Branch %s deleted\n", res.Branch)
	case res.Branch != "":
		fmt.Fprintf(out, "  Branch %s kept (%d commit(s) ahead of %s)\n", res.Branch, res.CommitsAhead, res.BaseBranch)
	}
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadTerminalApp(ctx)
	if err != nil {
		return err
	}
	loc, err := parseLocation(openFlags.location)
	if err != nil {
		return err
	}
	res, err := a.Manager.Open(ctx, args[0], openFlags.force, loc)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}

	if res.Reused {
		fmt.Fprintf(out, "%s is already open; use --force for another tab\n", res.Worktree.Name)
	} else {
		fmt.Fprintf(out, "Opened %s\n", res.Worktree.Name)
	}
	printTabs(out, res.Worktree.Tabs)
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadTerminalApp(ctx)
	if err != nil {
		return err
	}
	res, err := a.Manager.Resolver().SwitchTo(ctx, args[0], switchTab)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, res); ok {
		return err
	}
	fmt.Fprintf(out, "Switched to tab %s\n", res.Binding.TabID)
	if len(res.Others) > 0 {
		fmt.Fprintln(out, tableDimStyle.Render("Other tabs on this worktree:"))
		printTabs(out, res.Others)
	}
	return nil
}

func printTabs(w io.Writer, tabs []terminal.TabBinding) {
	for _, t := range tabs {
		fmt.Fprintf(w, "  tab %-6s window %-6s %s\n", t.TabID, t.WindowID, t.WorkingDirectory)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadTerminalApp(ctx)
	if err != nil {
		return err
	}
	rows, err := monitor.Snapshot(ctx, a.Manager)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		list := make([]worktree.Worktree, len(rows))
		for i, r := range rows {
			list[i] = r.Worktree
		}
		_, err := printJSON(out, list)
		return err
	}
	if len(rows) == 0 {
		printEmptyMessage(out, "No worktrees.", "Create one with: wtmcp create <folder> -b <branch> -d <task>")
		return nil
	}

	columns := []table.Column{
		{Title: "", Width: 2},
		{Title: "Worktree", Width: 20},
		{Title: "Branch", Width: 24},
		{Title: "Base", Width: 10},
		{Title: "Ahead", Width: 6},
		{Title: "Dirty", Width: 6},
		{Title: "Tabs", Width: 12},
	}
	tableRows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, table.Row{
			monitor.StatusIcon(r.Status),
			truncate(r.Worktree.Name, 20),
			truncate(r.Worktree.Ref(), 24),
			truncate(r.Worktree.BaseBranch, 10),
			fmt.Sprint(r.Ahead),
			fmt.Sprint(r.Dirty),
			truncate(tabList(r.Worktree.Tabs), 12),
		})
	}
	printTable(out, "Worktrees", columns, tableRows)
	return nil
}

func tabList(tabs []terminal.TabBinding) string {
	if len(tabs) == 0 {
		return "-"
	}
	return strings.Join(terminal.TabIDs(tabs), ",")
}
