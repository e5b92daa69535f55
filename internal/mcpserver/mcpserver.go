// Package mcpserver exposes the generation pipeline as MCP tools over stdio
// so editor agents can drive a project turn by turn.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/patch"
	"github.com/bleue740/huggy-code-haven-sub000/internal/render"
	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

const (
	toolGenerateApp  = "generate_app"
	toolListFiles    = "list_files"
	toolReadFile     = "read_file"
	toolCreditStatus = "credit_balance"
	toolReset        = "reset_conversation"
)

// Runner runs one turn. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, userID string, req orchestrator.TurnRequest, sink events.Sink) (*events.Result, error)
}

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// ProjectFile is where the project is loaded from and saved to.
	ProjectFile string
	User        string
	Ledger      credit.Ledger
	Snapshot    snapshot.Options
	Logger      *slog.Logger
}

// Server holds the conversation for one MCP session.
type Server struct {
	mcp    *server.MCPServer
	runner Runner
	opts   Options
	log    *slog.Logger

	// mu serializes turns; the project file has a single writer.
	mu      sync.Mutex
	history []llm.Message
}

// New builds a Server and registers its tools.
func New(runner Runner, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "haven"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		mcp:    server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(true)),
		runner: runner,
		opts:   opts,
		log:    opts.Logger,
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.Tool{
		Name:        toolGenerateApp,
		Description: "Run one conversational turn against the project: plan, generate, validate and apply the resulting file changes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "What to build or change, in plain language",
				},
				"apply": map[string]interface{}{
					"type":        "boolean",
					"description": "Write the result to the project file",
					"default":     true,
				},
			},
			Required: []string{"message"},
		},
	}, s.handleGenerate)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolListFiles,
		Description: "List the project's virtual files, entry file last",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}, s.handleListFiles)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolReadFile,
		Description: "Read one virtual file of the project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Virtual file path, e.g. App or Header",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleReadFile)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolCreditStatus,
		Description: "Show the remaining credit balance",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}, s.handleCredit)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolReset,
		Description: "Forget the conversation history of this session",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}, s.handleReset)
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := strings.TrimSpace(request.GetString("message", ""))
	apply := request.GetBool("apply", true)
	if message == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, err := vfs.LoadFile(s.opts.ProjectFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap := snapshot.Build(project, s.opts.Snapshot)

	messages := append(append([]llm.Message(nil), s.history...), llm.Message{Role: "user", Content: message})
	req := orchestrator.TurnRequest{
		Messages:       messages,
		ProjectContext: snap.ProjectContext,
		FileTree:       snap.FileTree,
	}

	var rec events.Recorder
	res, err := s.runner.Run(ctx, s.opts.User, req, &rec)
	if err != nil {
		s.log.Info("mcp turn failed", "err", err)
		if errors.Is(err, orchestrator.ErrCancelled) {
			return mcp.NewToolResultError("turn cancelled"), nil
		}
		return mcp.NewToolResultError(failureText(err, rec.Result())), nil
	}

	s.history = append(messages, llm.Message{Role: "assistant", Content: assistantText(res)})

	if !res.Conversational && apply {
		next, err := patch.Apply(project, res)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := os.MkdirAll(filepath.Dir(s.opts.ProjectFile), 0o755); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := vfs.SaveFile(next, s.opts.ProjectFile); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(render.Markdown(res, project)), nil
}

func (s *Server) handleListFiles(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := vfs.LoadFile(s.opts.ProjectFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(snapshot.FileTree(project.ListPaths())), nil
}

func (s *Server) handleReadFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	project, err := vfs.LoadFile(s.opts.ProjectFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, ok := project.Read(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("file %q not found", path)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) handleCredit(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.opts.Ledger == nil {
		return mcp.NewToolResultError("no credit ledger configured"), nil
	}
	bal, err := s.opts.Ledger.Balance(ctx, s.opts.User)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s has %d credits", s.opts.User, bal)), nil
}

func (s *Server) handleReset(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	return mcp.NewToolResultText("conversation cleared"), nil
}

// History returns a copy of the session's conversation.
func (s *Server) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

func assistantText(res *events.Result) string {
	if res.Conversational {
		return res.Reply
	}
	paths := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	return fmt.Sprintf("%s: updated %s", res.Intent, strings.Join(paths, ", "))
}

func failureText(err error, res *events.Result) string {
	if res != nil && res.Reply != "" {
		return fmt.Sprintf("%s (%v)", res.Reply, err)
	}
	return err.Error()
}
