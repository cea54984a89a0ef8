package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/badri/wtmcp/internal/handoff"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/worktree"
	"github.com/badri/wtmcp/internal/wterr"
)

// Tool names. They are part of the protocol and of the disallowed tool
// list handed to delegated sessions.
const (
	ToolCreate    = "createWorktree"
	ToolClose     = "closeWorktree"
	ToolActive    = "activeWorktrees"
	ToolSwitch    = "switchToWorktree"
	ToolOpen      = "openWorktree"
	ToolNotify    = "notifyTaskComplete"
	ToolAnalyze   = "analyzeWorktreeChanges"
	ToolSessionID = "getCurrentSessionId"
)

var locations = []string{
	string(terminal.NewTab),
	string(terminal.NewWindow),
	string(terminal.NewPaneRight),
	string(terminal.NewPaneBelow),
}

// arguments reads tool arguments.
type arguments map[string]any

func (a arguments) str(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (a arguments) required(keys ...string) error {
	var missing wterr.Details
	for _, k := range keys {
		if a.str(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return wterr.E(wterr.InvalidArgument, wterr.Op("mcpserver"),
			"missing required argument(s): "+strings.Join(missing, ", "), missing)
	}
	return nil
}

func (a arguments) boolean(key string, def bool) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}

func (a arguments) location(def terminal.Location) (terminal.Location, error) {
	raw := a.str("open_location")
	if raw == "" {
		return def, nil
	}
	loc, err := terminal.ParseLocation(raw)
	if err != nil {
		return "", wterr.E(wterr.InvalidArgument, wterr.Op("mcpserver"), err.Error(), wterr.Details(locations))
	}
	return loc, nil
}

func (s *Server) definitions() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolCreate,
				mcp.WithDescription("Create a git worktree next to the main repository on a new branch and open it in a terminal tab, optionally starting a delegated assistant session there."),
				mcp.WithString("feature_name", mcp.Required(), mcp.Description("Feature being developed, e.g. 'add-auth'")),
				mcp.WithString("branch_name", mcp.Required(), mcp.Description("Branch to create, e.g. 'feature/add-auth'")),
				mcp.WithString("worktree_folder", mcp.Required(), mcp.Description("Folder name of the new worktree, created beside the main repository")),
				mcp.WithString("description", mcp.Required(), mcp.Description("Task description, used as the delegated session's first prompt")),
				mcp.WithBoolean("start_claude", mcp.Description("Start a delegated assistant session in the new tab (default false)")),
				mcp.WithBoolean("reuse_branch", mcp.Description("Check out branch_name if it already exists instead of failing (default false)")),
				mcp.WithString("open_location", mcp.Description("Where to open the worktree"), mcp.Enum(locations...)),
				mcp.WithBoolean("switch_back", mcp.Description("Refocus the current tab after opening the new one")),
			),
			Handler: s.handle(ToolCreate, true, s.create),
		},
		{
			Tool: mcp.NewTool(ToolClose,
				mcp.WithDescription("Close a worktree: refuse if it has uncommitted changes or unpushed commits, otherwise close its tabs, remove it and delete its branch when nothing is ahead of base."),
				mcp.WithString("worktree_name", mcp.Required(), mcp.Description("Folder name of the worktree")),
			),
			Handler: s.handle(ToolClose, true, s.close),
		},
		{
			Tool: mcp.NewTool(ToolActive,
				mcp.WithDescription("List all worktrees with the terminal tabs currently open in each."),
			),
			Handler: s.handle(ToolActive, true, s.active),
		},
		{
			Tool: mcp.NewTool(ToolSwitch,
				mcp.WithDescription("Focus a terminal tab open on a worktree."),
				mcp.WithString("worktree_name", mcp.Required(), mcp.Description("Folder name of the worktree")),
				mcp.WithString("tab_id", mcp.Description("Specific tab to focus when several are open")),
			),
			Handler: s.handle(ToolSwitch, true, s.switchTo),
		},
		{
			Tool: mcp.NewTool(ToolOpen,
				mcp.WithDescription("Open an existing worktree in a terminal tab. Returns the existing tabs instead when it is already open, unless force is set."),
				mcp.WithString("worktree_name", mcp.Required(), mcp.Description("Folder name of the worktree")),
				mcp.WithBoolean("force", mcp.Description("Open another tab even if one is already open (default false)")),
				mcp.WithString("open_location", mcp.Description("Where to open the worktree"), mcp.Enum(locations...)),
			),
			Handler: s.handle(ToolOpen, true, s.open),
		},
		{
			Tool: mcp.NewTool(ToolNotify,
				mcp.WithDescription("Report that the task in a worktree is complete. With auto_merge, analyze the changes and merge into the base branch and close the worktree when they are ready."),
				mcp.WithString("worktree_name", mcp.Required(), mcp.Description("Folder name of the worktree")),
				mcp.WithString("task_summary", mcp.Required(), mcp.Description("Summary of the completed work")),
				mcp.WithBoolean("auto_merge", mcp.Description("Merge and close automatically when analysis says ready (default false)")),
			),
			Handler: s.handle(ToolNotify, true, s.notify),
		},
		{
			Tool: mcp.NewTool(ToolAnalyze,
				mcp.WithDescription("Analyze a worktree's changes against its base branch: diff stats, tests, lint and a merge recommendation."),
				mcp.WithString("worktree_name", mcp.Required(), mcp.Description("Folder name of the worktree")),
			),
			Handler: s.handle(ToolAnalyze, true, s.analyze),
		},
		{
			Tool: mcp.NewTool(ToolSessionID,
				mcp.WithDescription("Detect the current assistant session id, used to resume it in delegated sessions."),
			),
			Handler: s.handle(ToolSessionID, false, s.sessionID),
		},
	}
}

func (s *Server) create(ctx context.Context, a arguments) (*outcome, error) {
	if err := a.required("feature_name", "branch_name", "worktree_folder", "description"); err != nil {
		return nil, err
	}
	loc, err := a.location(s.deps.Defaults.Location)
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Manager.Create(ctx, worktree.CreateRequest{
		Feature:      a.str("feature_name"),
		Branch:       a.str("branch_name"),
		Folder:       a.str("worktree_folder"),
		Description:  a.str("description"),
		StartSession: a.boolean("start_claude", false),
		ReuseBranch:  a.boolean("reuse_branch", false),
		Location:     loc,
		SwitchBack:   a.boolean("switch_back", s.deps.Defaults.SwitchBack),
	})
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Created worktree %s on branch %s and opened tab %s", res.Worktree.Name, res.Worktree.Branch, res.Tab.TabID)
	if res.SessionStarted {
		msg += " with a delegated session"
	}
	return &outcome{message: msg, data: res, warnings: res.Warnings}, nil
}

func (s *Server) close(ctx context.Context, a arguments) (*outcome, error) {
	if err := a.required("worktree_name"); err != nil {
		return nil, err
	}
	res, err := s.deps.Manager.Close(ctx, a.str("worktree_name"))
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Closed worktree %s", res.Name)
	if res.BranchDeleted {
		msg += " and deleted branch " + res.Branch
	} else if res.Branch != "" {
		msg += fmt.Sprintf("; kept branch %s (%d commit(s) ahead)", res.Branch, res.CommitsAhead)
	}
	return &outcome{message: msg, data: res, warnings: res.Warnings}, nil
}

func (s *Server) active(ctx context.Context, a arguments) (*outcome, error) {
	list, err := s.deps.Manager.List(ctx)
	if err != nil {
		return nil, err
	}
	open := 0
	for _, wt := range list {
		if len(wt.Tabs) > 0 {
			open++
		}
	}
	return &outcome{
		message: fmt.Sprintf("%d worktree(s), %d open in a tab", len(list), open),
		data:    map[string]any{"worktrees": list},
	}, nil
}

func (s *Server) switchTo(ctx context.Context, a arguments) (*outcome, error) {
	if err := a.required("worktree_name"); err != nil {
		return nil, err
	}
	res, err := s.deps.Manager.Resolver().SwitchTo(ctx, a.str("worktree_name"), a.str("tab_id"))
	if err != nil {
		return nil, err
	}
	return &outcome{
		message: fmt.Sprintf("Switched to tab %s", res.Binding.TabID),
		data:    res,
	}, nil
}

func (s *Server) open(ctx context.Context, a arguments) (*outcome, error) {
	if err := a.required("worktree_name"); err != nil {
		return nil, err
	}
	loc, err := a.location(s.deps.Defaults.Location)
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Manager.Open(ctx, a.str("worktree_name"), a.boolean("force", false), loc)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Opened worktree %s in %s", res.Worktree.Name, strings.ReplaceAll(string(loc), "_", " "))
	if res.Reused {
		ids := terminal.TabIDs(res.Worktree.Tabs)
		msg = fmt.Sprintf("Worktree %s is already open in tab(s) %s; pass force=true to open another", res.Worktree.Name, strings.Join(ids, ", "))
	}
	return &outcome{message: msg, data: res, warnings: res.Warnings}, nil
}

func (s *Server) notify(ctx context.Context, a arguments) (*outcome, error) {
	if err := a.required("worktree_name", "task_summary"); err != nil {
		return nil, err
	}
	res, err := s.deps.Coordinator.NotifyTaskComplete(ctx, handoff.Report{
		Worktree:  a.str("worktree_name"),
		Summary:   a.str("task_summary"),
		AutoMerge: a.boolean("auto_merge", false),
	})
	if err != nil {
		return nil, err
	}
	var msg string
	switch res.Action {
	case handoff.ActionMerged:
		msg = fmt.Sprintf("Merged %s into %s", res.Branch, res.Merge.Base)
	case handoff.ActionManualReview:
		msg = fmt.Sprintf("Not merged: analysis says %s", res.Analysis.Recommendation)
	default:
		msg = fmt.Sprintf("Completion of %s reported", res.Worktree)
	}
	return &outcome{message: msg, data: res, warnings: res.Warnings}, nil
}

func (s *Server) analyze(ctx context.Context, a arguments) (*outcome, error) {
	if err := a.required("worktree_name"); err != nil {
		return nil, err
	}
	res, err := s.deps.Coordinator.Analyze(ctx, a.str("worktree_name"))
	if err != nil {
		return nil, err
	}
	return &outcome{
		message: fmt.Sprintf("%s: %s", res.Worktree, res.Recommendation),
		data:    res,
	}, nil
}

func (s *Server) sessionID(ctx context.Context, a arguments) (*outcome, error) {
	res := s.deps.Detector.Detect(ctx)
	return &outcome{data: res}, nil
}
