// Package logger provides the process-wide structured logger.
//
// Stdout belongs to the tool protocol when serving, so logs go either to a
// file (when a path is configured) or to stderr. On a terminal stderr gets a
// human-readable text handler; when piped it gets JSON.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/term"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	logPath  string
	initDone bool
)

// SetDebug enables or disables debug level logging.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init initializes the logger. An empty path logs to stderr.
// Calling Init again after a successful call is a no-op.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}

	if path == "" {
		root = slog.New(stderrHandler(os.Stderr))
		initDone = true
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logFile = f
	logPath = path
	root = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
	initDone = true

	root.Debug("logger initialized", "path", path)
	return nil
}

func stderrHandler(w *os.File) slog.Handler {
	options := &slog.HandlerOptions{Level: levelVar}
	if term.IsTerminal(int(w.Fd())) {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

// InitWriter points the logger at w. Intended for tests.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	root = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
}

// Path returns the log file path, or "" when logging to stderr.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

func get() *slog.Logger {
	if !initDone {
		root = slog.New(stderrHandler(os.Stderr))
		initDone = true
	}
	return root
}

// Get returns the root logger.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return get()
}

// WithComponent returns a logger with the component name attached.
//
//	log := logger.WithComponent("git")
//	log.Info("worktree added", "path", path)
//	// level=INFO msg="worktree added" component=git path=/src/repo-x
func WithComponent(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return get().With("component", component)
}

// WithInvocation returns a logger scoped to one tool call. Every line it
// writes carries the tool name and a fresh invocation id so the subprocess
// calls of a single operation can be grouped.
func WithInvocation(tool string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return get().With("tool", tool, "invocation", uuid.NewString())
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Reset resets the logger state, allowing reinitialization. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initDone = false
	logPath = ""
	root = nil
	levelVar = new(slog.LevelVar)
}
