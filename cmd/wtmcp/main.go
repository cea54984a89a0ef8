// Command wtmcp manages sibling git worktrees, each opened in its own
// terminal tab, as MCP tools (wtmcp serve) and as CLI commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/app"
	"github.com/badri/wtmcp/internal/config"
	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/wterr"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	debugMode  bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "wtmcp",
	Short: "Worktree-per-tab workflow for assistant sessions",
	Long: `wtmcp creates git worktrees next to the main repository, opens each one in
its own tmux or WezTerm tab, and coordinates delegated assistant sessions
working in them. Run "wtmcp serve" from an MCP client to expose the same
operations as tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func main() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Close()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func versionTemplate() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("wtmcp %s\n  commit: %s\n  built:  %s\n", version, commit, date)
	}
	return fmt.Sprintf("wtmcp %s\n", version)
}

// loadApp reads the config, starts logging and wires the App.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := logger.Init(cfg.LogPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	logger.SetDebug(cfg.Debug || debugMode)
	return app.New(ctx, cfg, app.Options{})
}

// loadTerminalApp is loadApp for commands that drive the terminal.
func loadTerminalApp(ctx context.Context) (*app.App, error) {
	a, err := loadApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.RequireTerminal(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// printJSON writes v indented when --json is set and reports whether it did.
func printJSON(w io.Writer, v any) (bool, error) {
	if !jsonOutput {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintln(w, tableWarnStyle.Render("warning: "+msg))
	}
}

func printError(w io.Writer, err error) {
	kind := wterr.KindOf(err)
	if kind == wterr.KindUnknown {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "error [%s]: %v\n", kind, err)
	for _, d := range wterr.DetailsOf(err) {
		fmt.Fprintf(w, "  - %s\n", d)
	}
}
