// Package gittest builds throwaway repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// InitRepo creates a repository with one commit on branch main and returns
// its path. The repository lives in its own temp directory so sibling
// worktrees can be created next to it.
func InitRepo(t testing.TB) string {
	t.Helper()
	tmpDir := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(tmpDir); err == nil {
		tmpDir = resolved
	}
	repoDir := filepath.Join(tmpDir, "repo")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatal(err)
	}

	Run(t, repoDir, "init", "-b", "main")
	Run(t, repoDir, "config", "user.email", "test@test.com")
	Run(t, repoDir, "config", "user.name", "Test")
	Run(t, repoDir, "config", "commit.gpgsign", "false")

	Commit(t, repoDir, "README.md", "# Test\n", "Initial commit")
	return repoDir
}

// Run executes git -C dir args... and returns trimmed output.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to name under dir, creating parent directories.
func WriteFile(t testing.TB, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// Commit writes a file and commits it.
func Commit(t testing.TB, dir, name, content, message string) {
	t.Helper()
	WriteFile(t, dir, name, content)
	Run(t, dir, "add", name)
	Run(t, dir, "commit", "-m", message)
}

// AddRemote creates a bare repository, registers it as origin of repoDir
// and pushes main to it. It returns the bare repository path.
func AddRemote(t testing.TB, repoDir string) string {
	t.Helper()
	remote := filepath.Join(filepath.Dir(repoDir), "remote.git")
	cmd := exec.Command("git", "init", "--bare", "-b", "main", remote)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init --bare failed: %v\n%s", err, out)
	}
	Run(t, repoDir, "remote", "add", "origin", remote)
	Run(t, repoDir, "push", "-u", "origin", "main")
	return remote
}
