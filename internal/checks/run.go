package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/badri/wtmcp/internal/executor"
	"github.com/badri/wtmcp/internal/wterr"
)

// Status is a check outcome.
type Status string

const (
	Pass    Status = "pass"
	Fail    Status = "fail"
	Unknown Status = "unknown"
)

// maxOutput bounds the output kept per outcome.
const maxOutput = 2000

// Outcome is the result of running one kind of check.
type Outcome struct {
	Status   Status   `json:"status"`
	Commands []string `json:"commands,omitempty"`
	Source   string   `json:"source,omitempty"`
	Output   string   `json:"output,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// Runner runs checks and hooks through sh -c.
type Runner struct {
	exec        executor.CommandExecutor
	TestTimeout time.Duration
	LintTimeout time.Duration
	HookTimeout time.Duration
}

// NewRunner returns a Runner. exec should not impose its own timeout;
// each check is bounded by the matching Runner timeout instead.
func NewRunner(exec executor.CommandExecutor, testTimeout, lintTimeout time.Duration) *Runner {
	return &Runner{
		exec:        exec,
		TestTimeout: testTimeout,
		LintTimeout: lintTimeout,
		HookTimeout: lintTimeout,
	}
}

// RunTests runs the plan's test command.
func (r *Runner) RunTests(ctx context.Context, dir string, plan Plan) Outcome {
	if plan.Test == "" {
		return Outcome{Status: Unknown, Reason: "no test command discovered"}
	}
	out := r.runAll(ctx, dir, []string{plan.Test}, r.TestTimeout)
	out.Source = plan.TestSource
	return out
}

// RunLint runs every lint command of the plan. All must pass.
func (r *Runner) RunLint(ctx context.Context, dir string, plan Plan) Outcome {
	if len(plan.Lint) == 0 {
		return Outcome{Status: Unknown, Reason: "no lint command discovered"}
	}
	out := r.runAll(ctx, dir, plan.Lint, r.LintTimeout)
	out.Source = plan.LintSource
	return out
}

func (r *Runner) runAll(ctx context.Context, dir string, commands []string, timeout time.Duration) Outcome {
	start := time.Now()
	out := Outcome{Status: Pass, Commands: commands}
	var output strings.Builder

	for _, command := range commands {
		text, err := r.run(ctx, dir, command, timeout)
		output.WriteString(text)
		if err != nil {
			out.Status = Fail
			if wterr.Is(err, wterr.OperationTimedOut) {
				out.Reason = fmt.Sprintf("%s timed out after %s", command, timeout)
			} else {
				out.Reason = fmt.Sprintf("%s: %v", command, err)
			}
			break
		}
	}

	out.Output = tail(output.String(), maxOutput)
	out.Duration = time.Since(start).Round(time.Millisecond).String()
	return out
}

func (r *Runner) run(ctx context.Context, dir, command string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stdout, stderr, err := r.exec.Run(ctx, dir, "sh", "-c", command)
	return string(stdout) + string(stderr), err
}

// RunHook runs a lifecycle hook in dir with env exported.
func (r *Runner) RunHook(ctx context.Context, dir, command string, env map[string]string) error {
	args := []string{}
	for k, v := range env {
		args = append(args, k+"="+v)
	}
	args = append(args, "sh", "-c", command)

	if r.HookTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.HookTimeout)
		defer cancel()
	}
	stdout, stderr, err := r.exec.Run(ctx, dir, "env", args...)
	if err != nil {
		return fmt.Errorf("hook %q: %w: %s", command, err, tail(strings.TrimSpace(string(stdout)+string(stderr)), 500))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
