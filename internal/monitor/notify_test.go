package monitor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/git/gittest"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/worktree"
)

func TestTaskComplete(t *testing.T) {
	tests := []struct {
		name        string
		summary     string
		wantBody    string
		wantLenLess int
	}{
		{name: "short summary", summary: "Added login form", wantBody: "Added login form"},
		{name: "long summary", summary: strings.Repeat("x", 500), wantLenLess: 201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Recorder{}
			if err := TaskComplete(rec, "repo-x", tt.summary); err != nil {
				t.Fatal(err)
			}
			if len(rec.Messages) != 1 {
				t.Fatalf("got %d notifications", len(rec.Messages))
			}
			msg := rec.Messages[0]
			if msg.Title != "Task complete: repo-x" {
				t.Errorf("title = %q", msg.Title)
			}
			if tt.wantBody != "" && msg.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", msg.Body, tt.wantBody)
			}
			if tt.wantLenLess > 0 && len([]rune(msg.Body)) >= tt.wantLenLess {
				t.Errorf("body not truncated: %d runes", len([]rune(msg.Body)))
			}
		})
	}
}

func TestDetectStatus(t *testing.T) {
	tests := []struct {
		name string
		wt   worktree.Worktree
		want string
	}{
		{"main", worktree.Worktree{Main: true}, StatusMain},
		{"no tabs", worktree.Worktree{}, StatusDetached},
		{"other window", worktree.Worktree{Tabs: []terminal.TabBinding{{}}}, StatusOpen},
		{"current window", worktree.Worktree{Tabs: []terminal.TabBinding{
			{Session: terminal.Session{IsCurrentWindow: true}},
		}}, StatusFocused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectStatus(tt.wt); got != tt.want {
				t.Errorf("DetectStatus = %q, want %q", got, tt.want)
			}
			if StatusIcon(tt.want) == "?" {
				t.Errorf("no icon for %q", tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	repoDir := gittest.InitRepo(t)
	wtPath := filepath.Join(filepath.Dir(repoDir), "repo-x")
	gittest.Run(t, repoDir, "worktree", "add", "-b", "feature/x", wtPath)
	gittest.Run(t, repoDir, "config", "branch.feature/x.wtmcpBase", "main")
	gittest.Commit(t, wtPath, "a.txt", "a\n", "Add a")
	gittest.WriteFile(t, wtPath, "wip.txt", "wip\n")

	host := terminal.NewMockHost(repoDir)
	mgr := worktree.New(worktree.Options{
		Repo:  git.NewRepo(repoDir, executor.NewRealExecutor(30*time.Second)),
		Index: terminal.NewIndex(host),
	})

	rows, err := Snapshot(context.Background(), mgr)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Status != StatusMain {
		t.Errorf("first row status = %q", rows[0].Status)
	}
	x := rows[1]
	if x.Status != StatusDetached || x.Dirty != 1 || x.Ahead != 1 {
		t.Errorf("repo-x row = %+v", x)
	}
}
