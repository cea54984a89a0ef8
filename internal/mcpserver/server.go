// Package mcpserver exposes worktree operations as MCP tools over stdio.
//
// Tool calls are handled one at a time. Each call re-checks that the
// terminal answers before touching anything, and every result is a JSON
// object with a success field; failures also carry error_kind, message,
// details and warnings.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/badri/wtmcp/internal/doctor"
	"github.com/badri/wtmcp/internal/handoff"
	"github.com/badri/wtmcp/internal/logger"
	"github.com/badri/wtmcp/internal/session"
	"github.com/badri/wtmcp/internal/terminal"
	"github.com/badri/wtmcp/internal/worktree"
	"github.com/badri/wtmcp/internal/wterr"
)

// Defaults fill optional tool arguments.
type Defaults struct {
	Location   terminal.Location
	SwitchBack bool
}

// Deps are the components the tools call into.
type Deps struct {
	Manager      *worktree.Manager
	Coordinator  *handoff.Coordinator
	Detector     *session.Detector
	Capabilities doctor.Capabilities
	Defaults     Defaults
}

// Server is the MCP tool server.
type Server struct {
	mcp   *server.MCPServer
	deps  Deps
	index *terminal.Index
	log   *slog.Logger

	// mu serializes tool calls.
	mu    sync.Mutex
	tools map[string]server.ServerTool
}

// New builds the server. Tools are registered only when the startup probe
// found a working terminal; otherwise the server answers with an empty
// tool list.
func New(deps Deps, name, version string) *Server {
	s := &Server{
		deps:  deps,
		index: deps.Manager.Resolver().Index(),
		log:   logger.WithComponent("mcpserver"),
		tools: make(map[string]server.ServerTool),
	}
	s.mcp = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	if !deps.Capabilities.Terminal {
		s.log.Warn("terminal unavailable; no tools registered", "reason", deps.Capabilities.Reason)
		return s
	}
	for _, t := range s.definitions() {
		s.tools[t.Tool.Name] = t
		s.mcp.AddTool(t.Tool, t.Handler)
	}
	s.log.Info("tools registered", "count", len(s.tools), "host", deps.Capabilities.Host)
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ToolNames lists the registered tools, sorted.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches req to its registered handler.
func (s *Server) Call(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, ok := s.tools[req.Params.Name]
	if !ok {
		return errorResult(wterr.E(wterr.InvalidArgument, wterr.Op("mcpserver.Call"), "unknown tool "+req.Params.Name), nil), nil
	}
	return t.Handler(ctx, req)
}

// Serve speaks MCP on in and out until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Get().Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// outcome is a successful tool payload.
type outcome struct {
	message  string
	data     any
	warnings []string
}

type toolFunc func(ctx context.Context, args arguments) (*outcome, error)

// handle wraps a tool body with serialization, the per-call terminal
// check, invocation logging and result encoding.
func (s *Server) handle(name string, needsTerminal bool, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		log := logger.WithInvocation(name)
		start := time.Now()
		log.Debug("tool called", "arguments", req.GetArguments())

		if needsTerminal {
			if err := s.index.Probe(ctx); err != nil {
				log.Warn("terminal unavailable", "error", err)
				return errorResult(err, nil), nil
			}
		}

		out, err := fn(ctx, arguments(req.GetArguments()))
		if err != nil {
			log.Warn("tool failed", "kind", wterr.KindOf(err).String(), "error", err,
				"duration", time.Since(start).Round(time.Millisecond))
			return errorResult(err, nil), nil
		}
		log.Info("tool done", "duration", time.Since(start).Round(time.Millisecond), "warnings", len(out.warnings))
		return successResult(out), nil
	}
}

func successResult(out *outcome) *mcp.CallToolResult {
	body := map[string]any{}
	if out.data != nil {
		raw, err := json.Marshal(out.data)
		if err != nil {
			return errorResult(err, nil)
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			body = map[string]any{"result": out.data}
		}
	}
	if _, ok := body["success"]; !ok {
		body["success"] = true
	}
	if out.message != "" {
		body["message"] = out.message
	}
	warnings := out.warnings
	if warnings == nil {
		warnings = []string{}
	}
	body["warnings"] = warnings

	text, err := json.Marshal(body)
	if err != nil {
		return errorResult(err, nil)
	}
	return mcp.NewToolResultText(string(text))
}

// failure is the JSON body of a failed call.
type failure struct {
	Success   bool     `json:"success"`
	ErrorKind string   `json:"error_kind"`
	Message   string   `json:"message"`
	Details   []string `json:"details"`
	Warnings  []string `json:"warnings"`
}

func errorResult(err error, warnings []string) *mcp.CallToolResult {
	f := failure{
		ErrorKind: wterr.KindOf(err).String(),
		Message:   err.Error(),
		Details:   wterr.DetailsOf(err),
		Warnings:  warnings,
	}
	if f.Details == nil {
		f.Details = []string{}
	}
	if f.Warnings == nil {
		f.Warnings = []string{}
	}
	text, mErr := json.Marshal(f)
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(text))
}

const instructions = `Worktree tools manage sibling git worktrees, each opened in its own terminal tab.

Main session: use createWorktree to hand a task to a delegated session, activeWorktrees to see
which tabs are open on which worktree, switchToWorktree and openWorktree to move between them,
and closeWorktree once the work is merged or pushed.

Delegated session: call notifyTaskComplete when the task is done. Pass auto_merge=true only when
the work should be merged into its base branch without review; the merge happens only if
analyzeWorktreeChanges judges it ready.`
