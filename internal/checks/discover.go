// Package checks discovers and runs a worktree's test and lint commands.
// Discovery is best-effort: a project with no recognizable command yields
// an unknown outcome rather than a failure.
package checks

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/badri/wtmcp/internal/project"
)

// disabled in test_command turns test discovery off.
const disabled = "none"

// Plan lists the commands to run for a worktree.
type Plan struct {
	Test       string   `json:"test,omitempty"`
	TestSource string   `json:"test_source,omitempty"`
	Lint       []string `json:"lint,omitempty"`
	LintSource string   `json:"lint_source,omitempty"`
}

// discoverer inspects a directory. lookPath is swapped in tests.
type discoverer struct {
	dir      string
	lookPath func(string) (string, error)
}

// Discover builds the plan for dir. Project settings take precedence over
// anything inferred from the files in dir.
func Discover(dir string, settings *project.Settings) Plan {
	return discoverer{dir: dir, lookPath: exec.LookPath}.plan(settings)
}

func (d discoverer) plan(settings *project.Settings) Plan {
	if settings == nil {
		settings = &project.Settings{}
	}
	var p Plan

	switch {
	case settings.TestCommand == disabled:
	case settings.TestCommand != "":
		p.Test, p.TestSource = settings.TestCommand, "settings"
	default:
		p.Test, p.TestSource = d.testCommand()
	}

	if settings.LintConfigured() {
		p.Lint, p.LintSource = settings.LintCommands, "settings"
	} else {
		p.Lint, p.LintSource = d.lintCommands()
	}
	return p
}

func (d discoverer) has(name string) bool {
	_, err := os.Stat(filepath.Join(d.dir, name))
	return err == nil
}

func (d discoverer) tool(name string) bool {
	_, err := d.lookPath(name)
	return err == nil
}

func (d discoverer) testCommand() (string, string) {
	if d.makeTarget("test") && d.tool("make") {
		return "make test", "Makefile"
	}
	if d.has("go.mod") && d.tool("go") {
		return "go test ./...", "go.mod"
	}
	if script := d.npmScript("test"); script != "" && !strings.Contains(script, "no test specified") && d.tool("npm") {
		return "npm test", "package.json"
	}
	if d.pythonTests() && d.tool("python3") {
		return "python3 -m pytest -q", "pyproject.toml"
	}
	if d.has("Cargo.toml") && d.tool("cargo") {
		return "cargo test", "Cargo.toml"
	}
	return "", ""
}

func (d discoverer) lintCommands() ([]string, string) {
	if d.makeTarget("lint") && d.tool("make") {
		return []string{"make lint"}, "Makefile"
	}
	var cmds []string
	var sources []string
	if d.has("go.mod") && d.tool("go") {
		cmds = append(cmds, "go vet ./...")
		sources = append(sources, "go.mod")
	}
	if d.npmScript("lint") != "" && d.tool("npm") {
		cmds = append(cmds, "npm run lint")
		sources = append(sources, "package.json")
	}
	if d.pyprojectTool("ruff") && d.tool("ruff") {
		cmds = append(cmds, "ruff check .")
		sources = append(sources, "pyproject.toml")
	}
	return cmds, strings.Join(sources, ",")
}

var targetPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*:`)

func (d discoverer) makeTarget(target string) bool {
	f, err := os.Open(filepath.Join(d.dir, "Makefile"))
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := targetPattern.FindStringSubmatch(scanner.Text()); m != nil && m[1] == target {
			return true
		}
	}
	return false
}

func (d discoverer) npmScript(name string) string {
	data, err := os.ReadFile(filepath.Join(d.dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Scripts[name]
}

// pyproject returns the [tool] table of pyproject.toml.
func (d discoverer) pyproject() map[string]any {
	data, err := os.ReadFile(filepath.Join(d.dir, "pyproject.toml"))
	if err != nil {
		return nil
	}
	var doc struct {
		Tool map[string]any `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Tool
}

func (d discoverer) pyprojectTool(name string) bool {
	_, ok := d.pyproject()[name]
	return ok
}

func (d discoverer) pythonTests() bool {
	if d.pyprojectTool("pytest") || d.has("pytest.ini") {
		return true
	}
	if !d.has("pyproject.toml") && !d.has("setup.py") {
		return false
	}
	return d.has("tests") || d.has("test")
}
