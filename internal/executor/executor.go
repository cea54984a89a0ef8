// Package executor abstracts subprocess execution so git and terminal
// backends can be driven by recorded responses in tests. Every real command
// is bounded by a timeout; a command that overruns it fails with
// wterr.OperationTimedOut instead of hanging the tool interface.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/badri/wtmcp/internal/wterr"
)

// CommandExecutor runs external commands.
type CommandExecutor interface {
	// Run executes a command and returns stdout, stderr, and any error.
	Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error)

	// Output executes a command and returns stdout, or an error carrying stderr.
	Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct {
	// Timeout bounds each command. Zero means only the caller's context applies.
	Timeout time.Duration
	// Env is appended to the inherited environment when set.
	Env []string
}

// NewRealExecutor returns a RealExecutor bounding every command by timeout.
func NewRealExecutor(timeout time.Duration) *RealExecutor {
	return &RealExecutor{Timeout: timeout}
}

// Run executes a command and returns stdout, stderr, and any error.
func (e *RealExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Children of a killed shell may hold the output pipes open.
	cmd.WaitDelay = time.Second
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = TimedOut(name, args, ctx.Err())
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), err
}

// Output executes a command and returns stdout, or an error with stderr context.
func (e *RealExecutor) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	stdout, stderr, err := e.Run(ctx, dir, name, args...)
	if err != nil {
		return stdout, WithStderr(err, stderr)
	}
	return stdout, nil
}

// TimedOut builds the OperationTimedOut error for a command.
func TimedOut(name string, args []string, cause error) error {
	return wterr.E(wterr.OperationTimedOut, wterr.Op("exec"),
		fmt.Sprintf("%s timed out", CommandLine(name, args)), cause)
}

// WithStderr folds trimmed stderr into err unless err is already a timeout.
func WithStderr(err error, stderr []byte) error {
	if wterr.Is(err, wterr.OperationTimedOut) {
		return err
	}
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}

// CommandLine renders a command for error messages, truncating long argument lists.
func CommandLine(name string, args []string) string {
	parts := append([]string{name}, args...)
	if len(parts) > 4 {
		parts = append(parts[:4], "...")
	}
	return strings.Join(parts, " ")
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// CommandMatcher decides whether a command matches a rule.
type CommandMatcher func(dir, name string, args []string) bool

// MockRule pairs a matcher with its response.
type MockRule struct {
	Match    CommandMatcher
	Response MockResponse
}

// MockCall records a command invocation for verification.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// MockExecutor returns pre-recorded responses for commands.
// Rules are matched in registration order.
type MockExecutor struct {
	mu       sync.RWMutex
	rules    []MockRule
	calls    []MockCall
	fallback CommandExecutor
}

// NewMockExecutor creates a MockExecutor. Unmatched commands go to fallback
// when it is non-nil, and otherwise succeed with empty output.
func NewMockExecutor(fallback CommandExecutor) *MockExecutor {
	return &MockExecutor{fallback: fallback}
}

// AddRule adds a matching rule with its response.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, MockRule{Match: match, Response: response})
}

// AddExactMatch adds a rule that matches a command and its arguments exactly.
func (e *MockExecutor) AddExactMatch(name string, args []string, response MockResponse) {
	e.AddRule(func(_, n string, a []string) bool {
		if n != name || len(a) != len(args) {
			return false
		}
		for i, arg := range args {
			if a[i] != arg {
				return false
			}
		}
		return true
	}, response)
}

// AddPrefixMatch adds a rule that matches commands starting with prefixArgs.
func (e *MockExecutor) AddPrefixMatch(name string, prefixArgs []string, response MockResponse) {
	e.AddRule(func(_, n string, a []string) bool {
		if n != name || len(a) < len(prefixArgs) {
			return false
		}
		for i, arg := range prefixArgs {
			if a[i] != arg {
				return false
			}
		}
		return true
	}, response)
}

// GetCalls returns all recorded invocations.
func (e *MockExecutor) GetCalls() []MockCall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	calls := make([]MockCall, len(e.calls))
	copy(calls, e.calls)
	return calls
}

// ClearCalls forgets recorded invocations.
func (e *MockExecutor) ClearCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *MockExecutor) findMatch(dir, name string, args []string) *MockResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rule := range e.rules {
		if rule.Match(dir, name, args) {
			resp := rule.Response
			return &resp
		}
	}
	return nil
}

func (e *MockExecutor) recordCall(dir, name string, args []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, MockCall{Dir: dir, Name: name, Args: append([]string(nil), args...)})
}

// Run executes a mocked command.
func (e *MockExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	e.recordCall(dir, name, args)

	if resp := e.findMatch(dir, name, args); resp != nil {
		return resp.Stdout, resp.Stderr, resp.Err
	}
	if e.fallback != nil {
		return e.fallback.Run(ctx, dir, name, args...)
	}
	return nil, nil, nil
}

// Output executes a mocked command.
func (e *MockExecutor) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	stdout, stderr, err := e.Run(ctx, dir, name, args...)
	if err != nil {
		return stdout, WithStderr(err, stderr)
	}
	return stdout, nil
}

var (
	_ CommandExecutor = (*RealExecutor)(nil)
	_ CommandExecutor = (*MockExecutor)(nil)
)
