// Package mcp exposes the convergence driver as an MCP server, so
// agent tooling can validate configurations, launch runs and inspect
// their history over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voltlab/electric"
	"github.com/voltlab/electric/internal/config"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// RunSummary is the structured result of a convergence run.
type RunSummary struct {
	RunID         string  `json:"run_id" jsonschema_description:"Identifier of the run"`
	Status        string  `json:"status" jsonschema_description:"Terminal state of the run"`
	Outcome       string  `json:"outcome" jsonschema_description:"converged, max_iterations_exceeded or engine_failure"`
	Iterations    int     `json:"iterations" jsonschema_description:"Number of completed iterations"`
	FinalResidual float64 `json:"final_residual,omitempty" jsonschema_description:"Residual of the last iteration"`
	Cause         string  `json:"cause,omitempty" jsonschema_description:"Fatal error for failed runs"`
}

// Server wraps the driver behind an MCP tool surface.
type Server struct {
	store     ports.RecordStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server. The store backs the record lookup
// tools and receives the history of runs launched through the server.
func NewServer(store ports.RecordStore, logger *slog.Logger) *Server {
	s := &Server{
		store:     store,
		logger:    logger,
		mcpServer: server.NewMCPServer("electric-mcp", strings.TrimSpace(electric.Version)),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	validateTool := mcp.NewTool("validate_config",
		mcp.WithDescription("Load a run configuration file, apply overrides and check it for errors without launching anything."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the YAML configuration file")),
		mcp.WithString("set", mcp.Description("JSON array of key=value overrides, e.g. [\"convergence.tolerance=1e-8\"]")),
	)
	s.mcpServer.AddTool(validateTool, s.handleValidateConfig)

	runTool := mcp.NewTool("run_convergence",
		mcp.WithDescription("Run the convergence loop described by a configuration file and wait for its terminal state."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the YAML configuration file")),
		mcp.WithString("set", mcp.Description("JSON array of key=value overrides")),
		mcp.WithOutputSchema[RunSummary](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunConvergence))

	recordsTool := mcp.NewTool("get_records",
		mcp.WithDescription("Get the per-iteration history of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Identifier of the run")),
	)
	s.mcpServer.AddTool(recordsTool, s.handleGetRecords)

	statusTool := mcp.NewTool("get_status",
		mcp.WithDescription("Get the current state of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Identifier of the run")),
	)
	s.mcpServer.AddTool(statusTool, s.handleGetStatus)
}

func (s *Server) loadConfig(request mcp.CallToolRequest) (*config.Config, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if setJSON := request.GetString("set", ""); setJSON != "" {
		var sets []string
		if err := json.Unmarshal([]byte(setJSON), &sets); err != nil {
			return nil, fmt.Errorf("invalid set argument: %w", err)
		}
		if err := cfg.ApplyOverrides(sets); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (s *Server) handleValidateConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := s.loadConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := cfg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("configuration is valid"), nil
}

func (s *Server) handleRunConvergence(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunSummary, error) {
	cfg, err := s.loadConfig(request)
	if err != nil {
		return RunSummary{}, err
	}
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}

	driver := electric.NewFromConfig(cfg,
		electric.WithStore(s.store),
		electric.WithLogger(s.logger),
	)

	s.logger.Info("mcp run starting", "run_id", driver.RunID())
	res, err := driver.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:      res.RunID,
		Status:     string(res.Status),
		Outcome:    string(domain.StatusOf(res.Status)),
		Iterations: len(res.History),
	}
	if len(res.History) > 0 {
		summary.FinalResidual = res.History[len(res.History)-1].Residual
	}
	if res.Cause != nil {
		summary.Cause = res.Cause.Error()
	}
	return summary, nil
}

func (s *Server) handleGetRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	history, err := s.store.History(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.Marshal(history)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, err := s.store.Status(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(status)), nil
}
