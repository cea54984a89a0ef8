package merge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/git/gittest"
	"github.com/badri/wtmcp/internal/wterr"
)

func setup(t *testing.T) (*git.Repo, string, string) {
	t.Helper()
	repoDir := gittest.InitRepo(t)
	wtPath := filepath.Join(filepath.Dir(repoDir), "repo-x")
	gittest.Run(t, repoDir, "worktree", "add", "-b", "feature/x", wtPath)
	return git.NewRepo(repoDir, executor.NewRealExecutor(30*time.Second)), repoDir, wtPath
}

func TestIntoBase(t *testing.T) {
	repo, repoDir, wtPath := setup(t)
	gittest.Commit(t, wtPath, "feature.txt", "feature\n", "Add feature")

	res, err := IntoBase(context.Background(), repo, Request{Worktree: "repo-x", Branch: "feature/x", Base: "main"})
	if err != nil {
		t.Fatalf("IntoBase failed: %v", err)
	}
	if res.Message != "Merge feature/x: repo-x" {
		t.Errorf("Message = %q", res.Message)
	}
	subject := gittest.Run(t, repoDir, "log", "-1", "--format=%s", "main")
	if subject != res.Message {
		t.Errorf("merge commit subject = %q, want %q", subject, res.Message)
	}
	parents := gittest.Run(t, repoDir, "log", "-1", "--format=%p", "main")
	if len(strings.Fields(parents)) != 2 {
		t.Errorf("expected a merge commit with two parents, got %q", parents)
	}
	if res.Pushed {
		t.Error("nothing should be pushed without Push")
	}
}

func TestIntoBaseRequiresCleanMain(t *testing.T) {
	repo, repoDir, wtPath := setup(t)
	gittest.Commit(t, wtPath, "feature.txt", "feature\n", "Add feature")
	gittest.WriteFile(t, repoDir, "README.md", "local edit\n")

	_, err := IntoBase(context.Background(), repo, Request{Worktree: "repo-x", Branch: "feature/x", Base: "main"})
	if !wterr.Is(err, wterr.NotClean) {
		t.Errorf("error = %v, want NotClean", err)
	}
}

func TestIntoBaseConflict(t *testing.T) {
	repo, repoDir, wtPath := setup(t)
	gittest.Commit(t, wtPath, "README.md", "feature side\n", "Edit in feature")
	gittest.Commit(t, repoDir, "README.md", "main side\n", "Edit in main")
	before := gittest.Run(t, repoDir, "rev-parse", "main")

	_, err := IntoBase(context.Background(), repo, Request{Worktree: "repo-x", Branch: "feature/x", Base: "main"})
	if !wterr.Is(err, wterr.MergeConflict) {
		t.Fatalf("error = %v, want MergeConflict", err)
	}
	if details := wterr.DetailsOf(err); len(details) != 1 || details[0] != "README.md" {
		t.Errorf("details = %v, want [README.md]", details)
	}
	if after := gittest.Run(t, repoDir, "rev-parse", "main"); after != before {
		t.Error("main must not move on conflict")
	}
	if status := gittest.Run(t, repoDir, "status", "--porcelain"); status != "" {
		t.Errorf("merge should be aborted, status:\n%s", status)
	}
}

func TestIntoBasePushes(t *testing.T) {
	repo, repoDir, wtPath := setup(t)
	remote := gittest.AddRemote(t, repoDir)
	gittest.Commit(t, wtPath, "feature.txt", "feature\n", "Add feature")

	res, err := IntoBase(context.Background(), repo, Request{Worktree: "repo-x", Branch: "feature/x", Base: "main", Push: true})
	if err != nil {
		t.Fatalf("IntoBase failed: %v", err)
	}
	if !res.Pushed {
		t.Fatalf("expected push, warnings: %v", res.Warnings)
	}
	if got := gittest.Run(t, remote, "rev-parse", "main"); got != res.Commit {
		t.Errorf("remote main = %s, want %s", got, res.Commit)
	}
}

func TestIntoBaseRestoresCheckedOutBranch(t *testing.T) {
	repo, repoDir, wtPath := setup(t)
	gittest.Run(t, repoDir, "checkout", "-b", "scratch")
	gittest.Commit(t, wtPath, "feature.txt", "feature\n", "Add feature")

	if _, err := IntoBase(context.Background(), repo, Request{Worktree: "repo-x", Branch: "feature/x", Base: "main"}); err != nil {
		t.Fatalf("IntoBase failed: %v", err)
	}
	if branch := gittest.Run(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD"); branch != "scratch" {
		t.Errorf("main worktree on %s, want scratch", branch)
	}
}
