package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the worktree tools over MCP on stdin/stdout",
	Long: `Serve speaks the Model Context Protocol on stdin and stdout. Logs go to
the configured log_path, or stderr. When no terminal answers at startup the
server starts with no tools.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")
	log.Info("starting", "version", version, "dir", a.Dir)

	srv := a.Server(ctx, version)
	err = srv.Serve(ctx, os.Stdin, os.Stdout)
	if ctx.Err() != nil {
		log.Info("shutting down")
		return nil
	}
	return err
}
