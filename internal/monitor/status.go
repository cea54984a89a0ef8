package monitor

import (
	"context"

	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/worktree"
)

// Status summarizes a worktree for display.
const (
	StatusMain     = "main"
	StatusFocused  = "focused"
	StatusOpen     = "open"
	StatusDetached = "detached"
)

// Row is one line of the watch view.
type Row struct {
	Worktree worktree.Worktree
	Status   string
	Dirty    int
	Ahead    int
}

// Snapshot lists worktrees with their status. Per-worktree git failures
// leave the counts at zero rather than failing the whole snapshot.
func Snapshot(ctx context.Context, m *worktree.Manager) ([]Row, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	repo := m.Repo()
	rows := make([]Row, 0, len(list))
	for _, wt := range list {
		row := Row{Worktree: wt, Status: DetectStatus(wt)}
		if dirty, err := repo.Status(ctx, wt.Path); err == nil {
			row.Dirty = len(dirty)
		}
		if !wt.Main && wt.BaseBranch != "" {
			row.Ahead = ahead(ctx, repo, wt)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func ahead(ctx context.Context, repo *git.Repo, wt worktree.Worktree) int {
	n, err := repo.CommitsAheadOfBase(ctx, wt.Ref(), wt.BaseBranch)
	if err != nil {
		return 0
	}
	return n
}

// DetectStatus classifies a worktree by its tab bindings.
func DetectStatus(wt worktree.Worktree) string {
	switch {
	case wt.Main:
		return StatusMain
	case len(wt.Tabs) == 0:
		return StatusDetached
	}
	for _, tab := range wt.Tabs {
		if tab.IsCurrentWindow {
			return StatusFocused
		}
	}
	return StatusOpen
}

// StatusIcon returns the glyph shown for a status.
func StatusIcon(status string) string {
	switch status {
	case StatusMain:
		return "◆"
	case StatusFocused:
		return "●"
	case StatusOpen:
		return "○"
	case StatusDetached:
		return "·"
	default:
		return "?"
	}
}
