// Package doctor detects the terminal backend, probes the capabilities the
// tool server depends on, and reports environment health for the CLI.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/badri/wtmcp/internal/config"
	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/git"
	"github.com/badri/wtmcp/internal/project"
	"github.com/badri/wtmcp/internal/session"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/tmux"
	"github.com/badri/wtmcp/internal/wezterm"
	"github.com/badri/wtmcp/internal/wterr"
)

// DetectHost returns the terminal backend named by cfg.Terminal, or in
// auto mode the one whose environment this process runs in.
func DetectHost(cfg *config.Config, exec executor.CommandExecutor) (terminal.Host, error) {
	op := wterr.Op("doctor.DetectHost")
	switch cfg.Terminal {
	case config.TerminalTmux:
		return tmux.FromEnv(exec), nil
	case config.TerminalWezTerm:
		return wezterm.FromEnv(exec), nil
	case config.TerminalAuto, "":
		switch {
		case tmux.Detected():
			return tmux.FromEnv(exec), nil
		case wezterm.Detected():
			return wezterm.FromEnv(exec), nil
		}
		return nil, wterr.E(wterr.TerminalUnavailable, op,
			"no supported terminal detected",
			wterr.Details{"run inside tmux or WezTerm, or set terminal in the config"})
	}
	return nil, wterr.E(wterr.InvalidArgument, op, fmt.Sprintf("unknown terminal %q", cfg.Terminal))
}

// Capabilities is the result of the startup probe.
type Capabilities struct {
	Host      string `json:"host,omitempty"`
	Terminal  bool   `json:"terminal"`
	Assistant bool   `json:"assistant"`
	Reason    string `json:"reason,omitempty"`
}

// Probe checks whether the terminal backend answers and the assistant CLI
// is installed. hostErr is the DetectHost error, if any.
func Probe(ctx context.Context, host terminal.Host, hostErr error, launcher *session.Launcher) Capabilities {
	var caps Capabilities
	if launcher != nil {
		caps.Assistant = launcher.Available()
	}
	if hostErr != nil {
		caps.Reason = hostErr.Error()
		return caps
	}
	caps.Host = host.Name()
	if err := terminal.NewIndex(host).Probe(ctx); err != nil {
		caps.Reason = err.Error()
		return caps
	}
	caps.Terminal = true
	return caps
}

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // "ok", "warn", "error"
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Env is what the checks inspect.
type Env struct {
	Config   *config.Config
	Exec     executor.CommandExecutor
	Host     terminal.Host
	HostErr  error
	Launcher *session.Launcher
	// Dir is the directory the repository checks start from.
	Dir string
}

// Check runs every check.
func Check(ctx context.Context, env Env) []CheckResult {
	var results []CheckResult
	results = append(results, checkTerminal(ctx, env.Host, env.HostErr))
	results = append(results, checkGit(ctx, env.Exec))

	root := ""
	repoResult := CheckResult{Name: "repository", Status: "error", Message: "not inside a git repository",
		Details: []string{fmt.Sprintf("Directory: %s", env.Dir)}}
	repo := git.NewRepo(env.Dir, env.Exec)
	if repo.IsGitRepo(ctx, env.Dir) {
		if r, err := repo.MainRoot(ctx); err == nil {
			root = r
			repoResult = CheckResult{Name: "repository", Status: "ok", Message: root}
		}
	}
	results = append(results, repoResult)

	results = append(results, checkAssistant(env.Launcher))
	results = append(results, checkConfig(env.Config))
	if root != "" {
		results = append(results, checkProject(root))
		results = append(results, checkClaudeMD(root)...)
	}
	return results
}

func checkTerminal(ctx context.Context, host terminal.Host, hostErr error) CheckResult {
	if hostErr != nil {
		return CheckResult{
			Name:    "terminal",
			Status:  "error",
			Message: "not detected",
			Details: append([]string{hostErr.Error()}, wterr.DetailsOf(hostErr)...),
		}
	}
	index := terminal.NewIndex(host)
	if err := index.Probe(ctx); err != nil {
		return CheckResult{
			Name:    "terminal",
			Status:  "error",
			Message: fmt.Sprintf("%s not reachable", host.Name()),
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}
	sessions, err := index.ListSessions(ctx)
	if err != nil {
		return CheckResult{
			Name:    "terminal",
			Status:  "warn",
			Message: fmt.Sprintf("%s reachable but listing failed", host.Name()),
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}
	return CheckResult{
		Name:    "terminal",
		Status:  "ok",
		Message: fmt.Sprintf("%s, %d tab(s)", host.Name(), len(sessions)),
	}
}

func checkGit(ctx context.Context, exec executor.CommandExecutor) CheckResult {
	out, err := exec.Output(ctx, "", "git", "--version")
	if err != nil {
		return CheckResult{
			Name:    "git",
			Status:  "error",
			Message: "not installed",
			Details: []string{"Install git: brew install git (macOS) or apt install git (Linux)"},
		}
	}
	return CheckResult{Name: "git", Status: "ok", Message: strings.TrimSpace(string(out))}
}

func checkAssistant(launcher *session.Launcher) CheckResult {
	if launcher != nil && launcher.Available() {
		return CheckResult{Name: "assistant CLI", Status: "ok", Message: "found"}
	}
	return CheckResult{
		Name:    "assistant CLI",
		Status:  "warn",
		Message: "not found on PATH",
		Details: []string{"Worktrees open plain tabs until claude_command is installed"},
	}
}

func checkConfig(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "config", Status: "error", Message: "not loaded"}
	}
	if err := cfg.Validate(); err != nil {
		return CheckResult{
			Name:    "config",
			Status:  "error",
			Message: "invalid",
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}
	if !cfg.ConfigExists() {
		return CheckResult{
			Name:    "config",
			Status:  "ok",
			Message: "using defaults",
			Details: []string{fmt.Sprintf("Create %s to customize", cfg.ConfigPath())},
		}
	}
	return CheckResult{Name: "config", Status: "ok", Message: fmt.Sprintf("loaded from %s", cfg.ConfigPath())}
}

func checkProject(root string) CheckResult {
	settings, err := project.Load(root)
	if err != nil {
		return CheckResult{
			Name:    "project settings",
			Status:  "error",
			Message: "invalid",
			Details: []string{fmt.Sprintf("Error: %v", err)},
		}
	}
	if settings.Path == "" {
		return CheckResult{Name: "project settings", Status: "ok", Message: "none (optional)"}
	}
	var details []string
	if settings.BaseBranch != "" {
		details = append(details, "base_branch: "+settings.BaseBranch)
	}
	if settings.TestCommand != "" {
		details = append(details, "test_command: "+settings.TestCommand)
	}
	return CheckResult{Name: "project settings", Status: "ok", Message: filepath.Base(settings.Path), Details: details}
}

// claudeMDHealthCheck validates the contents of a CLAUDE.md file
func claudeMDHealthCheck(path string) (status string, message string, details []string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "warn", "cannot read", []string{fmt.Sprintf("Error: %v", err)}
	}

	size := len(content)
	trimmed := strings.TrimSpace(string(content))
	if size == 0 || len(trimmed) == 0 {
		return "warn", "empty file", []string{"CLAUDE.md exists but has no content"}
	}

	// Delegated sessions load this into every new context.
	const maxRecommendedSize = 50 * 1024
	if size > maxRecommendedSize {
		return "warn", fmt.Sprintf("large file (%d KB)", size/1024),
			[]string{
				"Large CLAUDE.md files may overwhelm AI context",
				"Consider splitting into focused sections or removing verbose content",
			}
	}

	const minUsefulContent = 50
	if len(trimmed) < minUsefulContent {
		return "warn", "minimal content",
			[]string{
				fmt.Sprintf("Only %d bytes of content", len(trimmed)),
				"Consider adding more detailed project guidelines",
			}
	}
	return "ok", "healthy", nil
}

// checkClaudeMD reports on the CLAUDE.md and .claude/ that new worktrees
// inherit from root.
func checkClaudeMD(root string) []CheckResult {
	var results []CheckResult

	projectClaudeMD := filepath.Join(root, "CLAUDE.md")
	if _, err := os.Stat(projectClaudeMD); os.IsNotExist(err) {
		results = append(results, CheckResult{
			Name:    "project CLAUDE.md",
			Status:  "warn",
			Message: "not found",
			Details: []string{
				"Delegated sessions start without project guidelines",
				fmt.Sprintf("Path: %s", projectClaudeMD),
			},
		})
	} else {
		status, message, details := claudeMDHealthCheck(projectClaudeMD)
		results = append(results, CheckResult{
			Name:    "project CLAUDE.md",
			Status:  status,
			Message: message,
			Details: details,
		})
	}

	projectClaudeDir := filepath.Join(root, ".claude")
	info, err := os.Stat(projectClaudeDir)
	switch {
	case os.IsNotExist(err):
		results = append(results, CheckResult{
			Name:    "project .claude/",
			Status:  "ok",
			Message: "not configured (optional)",
		})
	case err != nil:
		results = append(results, CheckResult{
			Name:    "project .claude/",
			Status:  "warn",
			Message: "cannot access",
			Details: []string{fmt.Sprintf("Error: %v", err)},
		})
	case !info.IsDir():
		results = append(results, CheckResult{
			Name:    "project .claude/",
			Status:  "warn",
			Message: "exists but is not a directory",
		})
	default:
		results = append(results, CheckResult{
			Name:    "project .claude/",
			Status:  "ok",
			Message: "linked into new worktrees",
		})
	}
	return results
}

// Print writes results in a box and returns an error when any check failed.
func Print(w io.Writer, results []CheckResult) error {
	fmt.Fprintln(w, "┌─ wtmcp doctor ────────────────────────────────────────────────────────┐")
	fmt.Fprintln(w, "│                                                                       │")

	var hasErrors, hasWarnings bool
	for _, r := range results {
		icon := "✓"
		if r.Status == "warn" {
			icon = "!"
			hasWarnings = true
		} else if r.Status == "error" {
			icon = "✗"
			hasErrors = true
		}

		fmt.Fprintf(w, "│  [%s] %-65s │\n", icon, truncate(r.Name+": "+r.Message, 65))
		for _, detail := range r.Details {
			fmt.Fprintf(w, "│      %-63s │\n", truncate(detail, 63))
		}
	}

	fmt.Fprintln(w, "│                                                                       │")
	fmt.Fprintln(w, "└───────────────────────────────────────────────────────────────────────┘")

	if hasErrors {
		fmt.Fprintln(w, "\nSome checks failed. Please fix the errors above.")
		return fmt.Errorf("doctor found errors")
	} else if hasWarnings {
		fmt.Fprintln(w, "\nSome warnings found. Review the items above.")
	} else {
		fmt.Fprintln(w, "\nAll checks passed!")
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
