package terminal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/badri/wtmcp/internal/wterr"
)

type staticLocator map[string]string

func (l staticLocator) Locate(ctx context.Context, name string) (string, error) {
	if p, ok := l[name]; ok {
		return p, nil
	}
	return "", wterr.E(wterr.WorktreeNotFound, "worktree "+name+" not found")
}

func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func mkdirs(t *testing.T, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		dir, root string
		want      bool
	}{
		{"/src/repo", "/src/repo", true},
		{"/src/repo/pkg/sub", "/src/repo", true},
		{"/src/repo-feat", "/src/repo", false},
		{"/src/repository", "/src/repo", false},
		{"/src", "/src/repo", false},
		{"/anything", "/", true},
		{"", "/src/repo", false},
	}
	for _, tt := range tests {
		if got := IsWithin(tt.dir, tt.root); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.dir, tt.root, got, tt.want)
		}
	}
}

func TestNormalizePathResolvesSymlinks(t *testing.T) {
	root := tempRoot(t)
	real := filepath.Join(root, "real")
	mkdirs(t, real)
	link := filepath.Join(root, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if got := NormalizePath(link); got != real {
		t.Errorf("NormalizePath(link) = %q, want %q", got, real)
	}
	missing := filepath.Join(root, "gone", "..", "gone")
	if got := NormalizePath(missing); got != filepath.Join(root, "gone") {
		t.Errorf("NormalizePath(missing) = %q", got)
	}
}

func TestMatchNoSiblingPrefixFalsePositive(t *testing.T) {
	root := tempRoot(t)
	repo := filepath.Join(root, "repo")
	feat := filepath.Join(root, "repo-feat")
	mkdirs(t, filepath.Join(repo, "pkg"), feat)

	sessions := []Session{
		{WindowID: "$1", TabID: "@1", WorkingDirectory: repo},
		{WindowID: "$1", TabID: "@2", WorkingDirectory: feat},
		{WindowID: "$1", TabID: "@3", WorkingDirectory: filepath.Join(repo, "pkg")},
	}

	got := Match(sessions, repo)
	if len(got) != 2 {
		t.Fatalf("Match(repo) returned %d bindings, want 2: %+v", len(got), got)
	}
	for _, b := range got {
		if b.TabID == "@2" {
			t.Error("sibling directory with shared prefix must not match")
		}
		if b.WorktreePath != repo {
			t.Errorf("WorktreePath = %q, want %q", b.WorktreePath, repo)
		}
	}

	got = Match(sessions, feat)
	if len(got) != 1 || got[0].TabID != "@2" {
		t.Errorf("Match(feat) = %+v", got)
	}
}

func TestMatchThroughSymlink(t *testing.T) {
	root := tempRoot(t)
	real := filepath.Join(root, "repo-x")
	mkdirs(t, real)
	link := filepath.Join(root, "shortcut")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got := Match([]Session{{TabID: "@1", WorkingDirectory: link}}, real)
	if len(got) != 1 {
		t.Errorf("tab cwd via symlink should match, got %+v", got)
	}
}

func TestSortBindings(t *testing.T) {
	b := []TabBinding{
		{Session: Session{WindowID: "$2", TabID: "@10"}},
		{Session: Session{WindowID: "$10", TabID: "@1"}},
		{Session: Session{WindowID: "$2", TabID: "@9"}},
		{Session: Session{WindowID: "$3", TabID: "@4", IsCurrentWindow: true}},
	}
	SortBindings(b)

	want := []string{"@4", "@9", "@10", "@1"}
	for i, id := range want {
		if b[i].TabID != id {
			t.Errorf("position %d = %s, want %s (order %+v)", i, b[i].TabID, id, b)
		}
	}
}

func TestBindAllPrefersInnermostWorktree(t *testing.T) {
	root := tempRoot(t)
	outer := filepath.Join(root, "repo")
	inner := filepath.Join(outer, "nested-wt")
	mkdirs(t, filepath.Join(inner, "src"))

	sessions := []Session{
		{WindowID: "$1", TabID: "@1", WorkingDirectory: outer},
		{WindowID: "$1", TabID: "@2", WorkingDirectory: filepath.Join(inner, "src")},
	}
	got := bindAll(sessions, []string{outer, inner})

	if len(got[outer]) != 1 || got[outer][0].TabID != "@1" {
		t.Errorf("outer bindings = %+v", got[outer])
	}
	if len(got[inner]) != 1 || got[inner][0].TabID != "@2" {
		t.Errorf("inner bindings = %+v", got[inner])
	}
}

func TestIndexRetriesOnce(t *testing.T) {
	root := tempRoot(t)
	host := NewMockHost(root)
	host.ListFailures = 1

	sessions, err := NewIndex(host).ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions should succeed after one retry: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("got %d sessions, want 1", len(sessions))
	}
	if host.ListCalls != 2 {
		t.Errorf("ListCalls = %d, want 2", host.ListCalls)
	}
}

func TestIndexUnavailable(t *testing.T) {
	host := NewMockHost(tempRoot(t))
	host.ListFailures = 2

	_, err := NewIndex(host).ListSessions(context.Background())
	if !wterr.Is(err, wterr.TerminalUnavailable) {
		t.Errorf("kind = %q, want TerminalUnavailable", wterr.KindOf(err))
	}
	if host.ListCalls != 2 {
		t.Errorf("ListCalls = %d, want exactly 2", host.ListCalls)
	}

	_, err = NewIndex(nil).ListSessions(context.Background())
	if !wterr.Is(err, wterr.TerminalUnavailable) {
		t.Errorf("nil host kind = %q, want TerminalUnavailable", wterr.KindOf(err))
	}
}

func TestIndexEmptyHost(t *testing.T) {
	host := NewMockHost(tempRoot(t))
	host.Sessions = nil

	sessions, err := NewIndex(host).ListSessions(context.Background())
	if err != nil {
		t.Fatalf("zero windows is not an error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions", len(sessions))
	}
}

func TestProbe(t *testing.T) {
	host := NewMockHost(tempRoot(t))
	idx := NewIndex(host)
	if err := idx.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() = %v", err)
	}

	host.PingErr = errors.New("no server running")
	if err := idx.Probe(context.Background()); !wterr.Is(err, wterr.TerminalUnavailable) {
		t.Errorf("Probe() kind = %q, want TerminalUnavailable", wterr.KindOf(err))
	}

	host.PingErr = nil
	if err := idx.Probe(context.Background()); err != nil {
		t.Errorf("Probe() should not cache failures: %v", err)
	}
}

func TestTwoWindowsSameWorktree(t *testing.T) {
	root := tempRoot(t)
	wt := filepath.Join(root, "repo-x")
	mkdirs(t, wt)

	host := NewMockHost(root)
	other := host.AddTab("$2", wt)
	mine := host.AddTab("$1", wt)

	got, err := NewResolver(NewIndex(host), nil).FindTabsFor(context.Background(), wt)
	if err != nil {
		t.Fatalf("FindTabsFor failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bindings, want 2", len(got))
	}
	if got[0].TabID != mine.TabID || !got[0].IsCurrentWindow {
		t.Errorf("current-window binding should be first and flagged: %+v", got[0])
	}
	if got[1].TabID != other.TabID || got[1].IsCurrentWindow {
		t.Errorf("other-window binding = %+v", got[1])
	}
}

func TestSwitchTo(t *testing.T) {
	root := tempRoot(t)
	wt := filepath.Join(root, "repo-x")
	idle := filepath.Join(root, "repo-idle")
	mkdirs(t, wt, idle)

	host := NewMockHost(root)
	far := host.AddTab("$2", wt)
	near := host.AddTab("$1", filepath.Join(wt))
	loc := staticLocator{"repo-x": wt, "repo-idle": idle}
	r := NewResolver(NewIndex(host), loc)
	ctx := context.Background()

	t.Run("first by sort order", func(t *testing.T) {
		res, err := r.SwitchTo(ctx, "repo-x", "")
		if err != nil {
			t.Fatalf("SwitchTo failed: %v", err)
		}
		if res.Binding.TabID != near.TabID {
			t.Errorf("activated %s, want %s", res.Binding.TabID, near.TabID)
		}
		if len(res.Others) != 1 || res.Others[0].TabID != far.TabID {
			t.Errorf("Others = %+v", res.Others)
		}
		if host.Activated[len(host.Activated)-1] != near.TabID {
			t.Errorf("host activated %v", host.Activated)
		}
	})

	t.Run("explicit tab", func(t *testing.T) {
		res, err := r.SwitchTo(ctx, "repo-x", far.TabID)
		if err != nil {
			t.Fatalf("SwitchTo failed: %v", err)
		}
		if res.Binding.TabID != far.TabID {
			t.Errorf("activated %s, want %s", res.Binding.TabID, far.TabID)
		}
	})

	t.Run("unknown tab", func(t *testing.T) {
		_, err := r.SwitchTo(ctx, "repo-x", "@999")
		if !wterr.Is(err, wterr.TabNotFound) {
			t.Errorf("kind = %q, want TabNotFound", wterr.KindOf(err))
		}
	})

	t.Run("no open tab", func(t *testing.T) {
		_, err := r.SwitchTo(ctx, "repo-idle", "")
		if !wterr.Is(err, wterr.NoOpenTab) {
			t.Errorf("kind = %q, want NoOpenTab", wterr.KindOf(err))
		}
	})

	t.Run("unknown worktree", func(t *testing.T) {
		_, err := r.SwitchTo(ctx, "repo-missing", "")
		if !wterr.Is(err, wterr.WorktreeNotFound) {
			t.Errorf("kind = %q, want WorktreeNotFound", wterr.KindOf(err))
		}
	})
}

func TestSplitPanesBindIndividually(t *testing.T) {
	root := tempRoot(t)
	wt := filepath.Join(root, "repo-x")
	mkdirs(t, wt)

	host := NewMockHost(root)
	origin := host.Current
	ctx := context.Background()

	pane, err := host.OpenTab(ctx, wt, NewPaneRight)
	if err != nil {
		t.Fatalf("OpenTab failed: %v", err)
	}
	if pane.TabID != origin.TabID || pane.SessionID == origin.SessionID {
		t.Fatalf("split pane = %+v, want a new pane in tab %s", pane, origin.TabID)
	}
	if err := host.ActivateTab(ctx, origin); err != nil {
		t.Fatalf("ActivateTab failed: %v", err)
	}

	r := NewResolver(NewIndex(host), staticLocator{"repo-x": wt})
	got, err := r.FindTabsFor(ctx, wt)
	if err != nil {
		t.Fatalf("FindTabsFor failed: %v", err)
	}
	if len(got) != 1 || !got[0].Same(pane) {
		t.Fatalf("bindings = %+v, want the inactive split pane", got)
	}

	second, _ := host.OpenTab(ctx, wt, NewPaneBelow)
	res, err := r.SwitchTo(ctx, "repo-x", origin.TabID)
	if err != nil {
		t.Fatalf("SwitchTo failed: %v", err)
	}
	if !res.Binding.Same(pane) || len(res.Others) != 1 || !res.Others[0].Same(second) {
		t.Errorf("SwitchTo = %+v, want the first pane with the second as other", res)
	}
	if ids := TabIDs(append([]TabBinding{res.Binding}, res.Others...)); len(ids) != 1 {
		t.Errorf("TabIDs = %v, want one tab", ids)
	}

	if err := host.CloseTab(ctx, pane); err != nil {
		t.Fatalf("CloseTab failed: %v", err)
	}
	sessions, _ := host.ListSessions(ctx)
	for _, s := range sessions {
		if s.Same(pane) {
			t.Error("closed pane still listed")
		}
	}
	if len(sessions) != 2 {
		t.Errorf("closing one pane should keep the others, got %+v", sessions)
	}
}

func TestSessionSame(t *testing.T) {
	tests := []struct {
		name string
		a, b Session
		want bool
	}{
		{"same pane", Session{TabID: "@1", SessionID: "%1"}, Session{TabID: "@1", SessionID: "%1"}, true},
		{"sibling pane", Session{TabID: "@1", SessionID: "%1"}, Session{TabID: "@1", SessionID: "%2"}, false},
		{"tab only", Session{TabID: "@1"}, Session{TabID: "@1", SessionID: "%2"}, true},
		{"other tab", Session{TabID: "@1"}, Session{TabID: "@2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Same(tt.b); got != tt.want {
				t.Errorf("Same = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLocation(t *testing.T) {
	if loc, err := ParseLocation(""); err != nil || loc != NewTab {
		t.Errorf("ParseLocation(\"\") = %q, %v", loc, err)
	}
	if loc, err := ParseLocation("new_pane_below"); err != nil || loc != NewPaneBelow {
		t.Errorf("ParseLocation(new_pane_below) = %q, %v", loc, err)
	}
	if _, err := ParseLocation("sideways"); err == nil {
		t.Error("expected error for unknown location")
	}
}
