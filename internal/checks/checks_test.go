package checks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/project"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func allTools(string) (string, error) { return "/usr/bin/tool", nil }

func noTools(string) (string, error) { return "", errors.New("not found") }

func TestDiscover(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		lookPath func(string) (string, error)
		wantTest string
		wantLint []string
	}{
		{
			name:     "go module",
			files:    map[string]string{"go.mod": "module x\n"},
			lookPath: allTools,
			wantTest: "go test ./...",
			wantLint: []string{"go vet ./..."},
		},
		{
			name:     "makefile wins",
			files:    map[string]string{"go.mod": "module x\n", "Makefile": "build:\n\tgo build\ntest: build\n\tgo test ./...\nlint:\n\tgolangci-lint run\n"},
			lookPath: allTools,
			wantTest: "make test",
			wantLint: []string{"make lint"},
		},
		{
			name:     "npm placeholder test is ignored",
			files:    map[string]string{"package.json": `{"scripts": {"test": "echo \"Error: no test specified\" && exit 1", "lint": "eslint ."}}`},
			lookPath: allTools,
			wantTest: "",
			wantLint: []string{"npm run lint"},
		},
		{
			name:     "npm test",
			files:    map[string]string{"package.json": `{"scripts": {"test": "jest"}}`},
			lookPath: allTools,
			wantTest: "npm test",
		},
		{
			name:     "pyproject with pytest and ruff",
			files:    map[string]string{"pyproject.toml": "[project]\nname = \"x\"\n\n[tool.pytest.ini_options]\naddopts = \"-q\"\n\n[tool.ruff]\nline-length = 100\n"},
			lookPath: allTools,
			wantTest: "python3 -m pytest -q",
			wantLint: []string{"ruff check ."},
		},
		{
			name:     "python tests dir",
			files:    map[string]string{"setup.py": "", "tests/test_x.py": ""},
			lookPath: allTools,
			wantTest: "python3 -m pytest -q",
		},
		{
			name:     "tools missing",
			files:    map[string]string{"go.mod": "module x\n"},
			lookPath: noTools,
		},
		{
			name:  "nothing to find",
			files: map[string]string{"README.md": "# hi\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tt.files)
			lookPath := tt.lookPath
			if lookPath == nil {
				lookPath = allTools
			}

			plan := discoverer{dir: dir, lookPath: lookPath}.plan(nil)
			if plan.Test != tt.wantTest {
				t.Errorf("Test = %q, want %q", plan.Test, tt.wantTest)
			}
			if strings.Join(plan.Lint, "|") != strings.Join(tt.wantLint, "|") {
				t.Errorf("Lint = %v, want %v", plan.Lint, tt.wantLint)
			}
		})
	}
}

func TestDiscoverSettingsOverride(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"go.mod":      "module x\n",
		".wtmcp.yaml": "test_command: none\nlint_commands: []\n",
	})
	settings, err := project.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	plan := discoverer{dir: dir, lookPath: allTools}.plan(settings)
	if plan.Test != "" {
		t.Errorf("test_command none should disable tests, got %q", plan.Test)
	}
	if len(plan.Lint) != 0 {
		t.Errorf("empty lint_commands should disable lint, got %v", plan.Lint)
	}

	settings.TestCommand = "./scripts/test.sh"
	plan = discoverer{dir: dir, lookPath: allTools}.plan(settings)
	if plan.Test != "./scripts/test.sh" || plan.TestSource != "settings" {
		t.Errorf("plan = %+v", plan)
	}
}

func newRunner() *Runner {
	return NewRunner(executor.NewRealExecutor(0), 5*time.Second, 5*time.Second)
}

func TestRunTests(t *testing.T) {
	r := newRunner()
	ctx := context.Background()
	dir := t.TempDir()

	out := r.RunTests(ctx, dir, Plan{})
	if out.Status != Unknown {
		t.Errorf("no command: status = %q, want unknown", out.Status)
	}

	out = r.RunTests(ctx, dir, Plan{Test: "echo ok"})
	if out.Status != Pass || !strings.Contains(out.Output, "ok") {
		t.Errorf("passing command: %+v", out)
	}

	out = r.RunTests(ctx, dir, Plan{Test: "echo broken >&2; exit 1"})
	if out.Status != Fail || !strings.Contains(out.Output, "broken") {
		t.Errorf("failing command: %+v", out)
	}
}

func TestRunLintStopsAtFirstFailure(t *testing.T) {
	r := newRunner()
	dir := t.TempDir()

	out := r.RunLint(context.Background(), dir, Plan{Lint: []string{"true", "false", "touch should-not-run"}})
	if out.Status != Fail {
		t.Errorf("status = %q, want fail", out.Status)
	}
	if _, err := os.Stat(filepath.Join(dir, "should-not-run")); err == nil {
		t.Error("commands after a failure should not run")
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(executor.NewRealExecutor(0), 100*time.Millisecond, time.Second)
	out := r.RunTests(context.Background(), t.TempDir(), Plan{Test: "sleep 5"})
	if out.Status != Fail {
		t.Errorf("status = %q, want fail", out.Status)
	}
	if !strings.Contains(out.Reason, "timed out") {
		t.Errorf("reason = %q", out.Reason)
	}
}

func TestRunHook(t *testing.T) {
	r := newRunner()
	dir := t.TempDir()

	err := r.RunHook(context.Background(), dir, `echo "$WTMCP_BRANCH" > hook.out`, map[string]string{"WTMCP_BRANCH": "feature/x"})
	if err != nil {
		t.Fatalf("RunHook failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "hook.out"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "feature/x" {
		t.Errorf("hook saw %q", data)
	}

	err = r.RunHook(context.Background(), dir, "echo nope; exit 2", nil)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("failing hook error = %v", err)
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 10); got != "short" {
		t.Errorf("tail = %q", got)
	}
	if got := tail("0123456789", 4); got != "...6789" {
		t.Errorf("tail = %q", got)
	}
}
