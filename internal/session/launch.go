package session

import (
	"context"
	"os/exec"
	"strings"
)

// ManagementTools are the worktree operations a delegated session may not
// call, so a sub-session can never spawn further sub-sessions.
var ManagementTools = []string{
	"createWorktree",
	"closeWorktree",
	"activeWorktrees",
	"switchToWorktree",
	"openWorktree",
}

// LaunchOptions control how delegated sessions are started.
type LaunchOptions struct {
	Command         string // assistant CLI, e.g. "claude"
	ServerName      string // tool server name used in mcp__<server>__<tool>
	SkipPermissions bool
	ShareSession    bool
	MCPConfigPath   string
	AdditionalArgs  string
}

// Launcher builds delegated session commands.
type Launcher struct {
	opts     LaunchOptions
	detector *Detector
	lookPath func(string) (string, error)
}

// NewLauncher returns a Launcher. detector is consulted only when session
// sharing is enabled.
func NewLauncher(opts LaunchOptions, detector *Detector) *Launcher {
	if opts.Command == "" {
		opts.Command = "claude"
	}
	if opts.ServerName == "" {
		opts.ServerName = "worktree"
	}
	return &Launcher{opts: opts, detector: detector, lookPath: exec.LookPath}
}

// Available reports whether the assistant CLI is on PATH.
func (l *Launcher) Available() bool {
	fields := strings.Fields(l.opts.Command)
	if len(fields) == 0 {
		return false
	}
	_, err := l.lookPath(fields[0])
	return err == nil
}

// DisallowedTools returns the fully qualified names of ManagementTools.
func (l *Launcher) DisallowedTools() []string {
	out := make([]string, len(ManagementTools))
	for i, t := range ManagementTools {
		out[i] = "mcp__" + l.opts.ServerName + "__" + t
	}
	return out
}

// Command returns the shell command line that starts a delegated session
// working on description.
func (l *Launcher) Command(ctx context.Context, description string) string {
	parts := []string{l.opts.Command}

	if l.opts.ShareSession && l.detector != nil {
		if res := l.detector.Detect(ctx); res.Success {
			parts = append(parts, "--resume", ShellQuote(res.SessionID))
		}
	}

	parts = append(parts, ShellQuote(description))

	if l.opts.SkipPermissions {
		parts = append(parts, "--dangerously-skip-permissions")
	}

	parts = append(parts, "--disallowedTools", strings.Join(l.DisallowedTools(), ","))

	if l.opts.MCPConfigPath != "" {
		parts = append(parts, "--mcp-config", ShellQuote(l.opts.MCPConfigPath))
	}
	if l.opts.AdditionalArgs != "" {
		parts = append(parts, l.opts.AdditionalArgs)
	}
	return strings.Join(parts, " ")
}

// ShellQuote wraps s in single quotes for POSIX shells.
func ShellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,@%+", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
