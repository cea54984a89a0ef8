// Package session identifies the assistant session this server runs under and
// builds the command that launches delegated sessions in new tabs.
package session

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/badri/wtmcp/internal/executor"
)

// Sources reported by Detect.
const (
	SourceConfig   = "environment_variable"
	SourceSnapshot = "shell_snapshots_scan"
	SourceNone     = "none"
)

// envCandidates are checked in order when no override or snapshot is found.
var envCandidates = []string{"CLAUDE_SESSION_ID", "CLAUDE_CODE_SESSION", "MCP_SESSION_ID"}

// snapshotPattern matches the shell snapshot scripts the assistant CLI
// spawns, e.g. ~/.claude/shell-snapshots/snapshot-zsh-1718000000000-ab12cd.sh.
var snapshotPattern = regexp.MustCompile(`\.claude/shell-snapshots/snapshot-[^-]+-(\d+)-([a-zA-Z0-9]+)\.sh`)

// IDResult is the outcome of session id detection.
type IDResult struct {
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// Detector finds the current assistant session id.
type Detector struct {
	exec     executor.CommandExecutor
	override string
	getenv   func(string) string
}

// NewDetector returns a Detector. override, when non-empty, always wins.
func NewDetector(exec executor.CommandExecutor, override string) *Detector {
	return &Detector{exec: exec, override: override, getenv: os.Getenv}
}

// Detect tries, in order: the configured override, a process scan for
// shell snapshot scripts (newest timestamp wins), and well-known
// environment variables.
func (d *Detector) Detect(ctx context.Context) IDResult {
	if d.override != "" {
		return IDResult{
			SessionID: d.override,
			Source:    SourceConfig,
			Success:   true,
			Message:   "from WORKTREE_MCP_CLAUDE_SESSION_ID",
		}
	}

	if out, err := d.exec.Output(ctx, "", "ps", "-eo", "pid,args"); err == nil {
		if id, ok := latestSnapshot(string(out)); ok {
			return IDResult{
				SessionID: id,
				Source:    SourceSnapshot,
				Success:   true,
				Message:   "latest session found by scanning shell snapshot processes",
			}
		}
	}

	for _, name := range envCandidates {
		if v := d.getenv(name); len(v) > 10 {
			return IDResult{
				SessionID: v,
				Source:    "environment_variable_" + name,
				Success:   true,
				Message:   fmt.Sprintf("from environment variable %s", name),
			}
		}
	}

	return IDResult{
		Source:  SourceNone,
		Success: false,
		Message: "could not detect the current session id; set WORKTREE_MCP_CLAUDE_SESSION_ID",
	}
}

// latestSnapshot returns the session id of the newest snapshot script found
// in ps output.
func latestSnapshot(psOutput string) (string, bool) {
	var (
		bestTS int64 = -1
		bestID string
	)
	for _, m := range snapshotPattern.FindAllStringSubmatch(psOutput, -1) {
		ts, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if ts > bestTS {
			bestTS = ts
			bestID = fmt.Sprintf("claude-code-%s-%s", m[1], m[2])
		}
	}
	return bestID, bestID != ""
}
