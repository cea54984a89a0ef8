package terminal

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/badri/wtmcp/internal/wterr"
)

// TabBinding ties a live tab to the worktree its working directory is in.
type TabBinding struct {
	Session
	WorktreePath string `json:"worktree_path"`
}

// Locator resolves a worktree name to its registered path.
type Locator interface {
	Locate(ctx context.Context, name string) (string, error)
}

// Resolver matches tabs to worktrees.
type Resolver struct {
	index   *Index
	locator Locator
}

// NewResolver returns a Resolver that lists sessions through index and
// resolves worktree names through locator.
func NewResolver(index *Index, locator Locator) *Resolver {
	return &Resolver{index: index, locator: locator}
}

// Index returns the underlying session index.
func (r *Resolver) Index() *Index {
	return r.index
}

// FindTabsFor returns the tabs whose working directory is the worktree or a
// subdirectory of it, current window first.
func (r *Resolver) FindTabsFor(ctx context.Context, worktreePath string) ([]TabBinding, error) {
	sessions, err := r.index.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return Match(sessions, worktreePath), nil
}

// BindAll resolves several worktrees against a single session listing. A
// tab inside nested worktrees is bound to the innermost one.
func (r *Resolver) BindAll(ctx context.Context, paths []string) (map[string][]TabBinding, error) {
	sessions, err := r.index.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return bindAll(sessions, paths), nil
}

func bindAll(sessions []Session, paths []string) map[string][]TabBinding {
	normalized := make(map[string]string, len(paths))
	for _, p := range paths {
		normalized[p] = NormalizePath(p)
	}

	out := make(map[string][]TabBinding, len(paths))
	for _, s := range sessions {
		cwd := NormalizePath(s.WorkingDirectory)
		best := ""
		for _, p := range paths {
			root := normalized[p]
			if IsWithin(cwd, root) && (best == "" || len(root) > len(normalized[best])) {
				best = p
			}
		}
		if best != "" {
			out[best] = append(out[best], TabBinding{Session: s, WorktreePath: normalized[best]})
		}
	}
	for p := range out {
		SortBindings(out[p])
	}
	return out
}

// Match filters sessions down to those rooted in worktreePath.
func Match(sessions []Session, worktreePath string) []TabBinding {
	root := NormalizePath(worktreePath)
	var bindings []TabBinding
	for _, s := range sessions {
		if IsWithin(NormalizePath(s.WorkingDirectory), root) {
			bindings = append(bindings, TabBinding{Session: s, WorktreePath: root})
		}
	}
	SortBindings(bindings)
	return bindings
}

// SortBindings orders bindings current window first, then by window id, tab
// id and pane id. Ids with numeric suffixes ("@9", "@10") compare numerically.
func SortBindings(b []TabBinding) {
	sort.SliceStable(b, func(i, j int) bool {
		if b[i].IsCurrentWindow != b[j].IsCurrentWindow {
			return b[i].IsCurrentWindow
		}
		if c := compareIDs(b[i].WindowID, b[j].WindowID); c != 0 {
			return c < 0
		}
		if c := compareIDs(b[i].TabID, b[j].TabID); c != 0 {
			return c < 0
		}
		return compareIDs(b[i].SessionID, b[j].SessionID) < 0
	})
}

func compareIDs(a, b string) int {
	na, errA := strconv.Atoi(strings.TrimLeft(a, "@$%#"))
	nb, errB := strconv.Atoi(strings.TrimLeft(b, "@$%#"))
	if errA == nil && errB == nil && na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// SwitchResult reports the activated tab and any other candidates.
type SwitchResult struct {
	Binding TabBinding   `json:"binding"`
	Others  []TabBinding `json:"others,omitempty"`
}

// SwitchTo focuses a tab bound to the named worktree. With tabID it picks
// the first pane of that tab; otherwise it picks the first binding in sort order and
// reports the rest.
func (r *Resolver) SwitchTo(ctx context.Context, name, tabID string) (*SwitchResult, error) {
	op := wterr.Op("terminal.SwitchTo")

	path, err := r.locator.Locate(ctx, name)
	if err != nil {
		return nil, err
	}
	bindings, err := r.FindTabsFor(ctx, path)
	if err != nil {
		return nil, err
	}

	result := &SwitchResult{}
	switch {
	case tabID != "":
		found := false
		for _, b := range bindings {
			if !found && b.TabID == tabID {
				result.Binding = b
				found = true
			} else {
				result.Others = append(result.Others, b)
			}
		}
		if !found {
			return nil, wterr.E(wterr.TabNotFound, op,
				fmt.Sprintf("tab %s is not open on worktree %s", tabID, name), tabIDs(bindings))
		}
	case len(bindings) == 0:
		return nil, wterr.E(wterr.NoOpenTab, op,
			fmt.Sprintf("worktree %s exists but no tab has it open", name))
	default:
		result.Binding = bindings[0]
		result.Others = bindings[1:]
	}

	if err := r.index.Host().ActivateTab(ctx, result.Binding.Session); err != nil {
		if wterr.Is(err, wterr.OperationTimedOut) {
			return nil, err
		}
		return nil, wterr.E(wterr.TerminalUnavailable, op, "activating tab "+result.Binding.TabID, err)
	}
	return result, nil
}

func tabIDs(bindings []TabBinding) wterr.Details {
	var ids wterr.Details
	for _, id := range TabIDs(bindings) {
		ids = append(ids, "open tab: "+id)
	}
	return ids
}

// TabIDs lists the distinct tabs of bindings in order. Split panes of one tab
// appear once.
func TabIDs(bindings []TabBinding) []string {
	var ids []string
	for _, b := range bindings {
		if !slices.Contains(ids, b.TabID) {
			ids = append(ids, b.TabID)
		}
	}
	return ids
}
