package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/bagofwords1/bagofwords-sub001/config"
	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/metrics"
	"github.com/bagofwords1/bagofwords-sub001/pipeline"
	"github.com/bagofwords1/bagofwords-sub001/profile"
	"github.com/bagofwords1/bagofwords-sub001/sandbox"
)

// Tool names.
const (
	ToolRunTablePipeline = "run_table_pipeline"
	ToolExecuteTableCode = "execute_table_code"
	ToolListDataSources  = "list_data_sources"
)

// eventNotification is the method used to forward pipeline events.
const eventNotification = "notifications/message"

// Sources exposes the configured data-source clients.
type Sources interface {
	Clients() map[string]datasource.Client
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  pipeline.Executor
	sources   Sources
	mcpServer *server.MCPServer
	http      *server.StreamableHTTPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor pipeline.Executor, sources Sources) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
		sources:  sources,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Int("sandbox.timeout_sec", cfg.Sandbox.TimeoutSec),
		zap.Uint64("sandbox.max_steps", cfg.Sandbox.MaxSteps),
		zap.Int("sandbox.max_output_bytes", cfg.Sandbox.MaxOutputBytes),
		zap.Int("sandbox.max_code_bytes", cfg.Sandbox.MaxCodeBytes),
		zap.Int("pipeline.max_retries", cfg.Pipeline.MaxRetries),
		zap.Int("pipeline.max_rows", cfg.Pipeline.MaxRows),
		zap.Bool("pipeline.validate", cfg.Pipeline.Validate),
		zap.Int("data_sources", len(cfg.DataSources)),
	)

	s.mcpServer = server.NewMCPServer("tablegen", "1.0.0",
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s.registerRunTablePipelineTool()
	s.registerExecuteTableCodeTool()
	s.registerListDataSourcesTool()

	if cfg.Server.Transport == "http" {
		s.http = server.NewStreamableHTTPServer(s.mcpServer)
	}

	return s, nil
}

// registerRunTablePipelineTool registers the run_table_pipeline tool
func (s *MCPServer) registerRunTablePipelineTool() {
	tool := mcp.Tool{
		Name: ToolRunTablePipeline,
		Description: "Run candidate Starlark programs through the generate, validate and execute pipeline. " +
			"Each program must define generate_table(sources, files). Candidates are tried in order, " +
			"the last one is reused for remaining attempts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"candidates": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Starlark programs to try, in order",
				},
				"prompt": map[string]any{
					"type":        "string",
					"description": "Request the programs were written for (optional)",
				},
				"max_retries": map[string]any{
					"type":        "number",
					"description": "Maximum number of attempts",
				},
				"max_rows": map[string]any{
					"type":        "number",
					"description": "Maximum number of rows in the widget payload",
				},
				"validate": map[string]any{
					"type":        "boolean",
					"description": "Statically validate each program before running it",
				},
			},
			Required: []string{"candidates"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunTablePipeline)
}

// registerExecuteTableCodeTool registers the execute_table_code tool
func (s *MCPServer) registerExecuteTableCodeTool() {
	tool := mcp.Tool{
		Name:        ToolExecuteTableCode,
		Description: "Execute a single Starlark program against the configured data sources and profile the result",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Starlark program defining generate_table(sources, files)",
				},
				"max_rows": map[string]any{
					"type":        "number",
					"description": "Maximum number of rows in the widget payload",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteTableCode)
}

// registerListDataSourcesTool registers the list_data_sources tool
func (s *MCPServer) registerListDataSourcesTool() {
	tool := mcp.Tool{
		Name:        ToolListDataSources,
		Description: "List the data sources available to programs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleListDataSources)
}

// runResult is the run_table_pipeline tool result.
type runResult struct {
	Done    pipeline.DonePayload   `json:"done"`
	Widget  *profile.WidgetPayload `json:"widget"`
	Summary string                 `json:"summary"`
}

// handleRunTablePipeline handles the run_table_pipeline tool
func (s *MCPServer) handleRunTablePipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	candidates, err := request.RequireStringSlice("candidates")
	if err != nil {
		return nil, fmt.Errorf("candidates parameter is required: %w", err)
	}
	if len(candidates) == 0 {
		return nil, errors.New("candidates must contain at least one program")
	}

	maxRetries := request.GetInt("max_retries", s.config.Pipeline.MaxRetries)
	maxRows := request.GetInt("max_rows", s.config.Pipeline.MaxRows)
	validate := request.GetBool("validate", s.config.Pipeline.Validate)

	s.logger.Info("pipeline run requested",
		zap.Int("candidates", len(candidates)),
		zap.Int("max_retries", maxRetries),
		zap.Bool("validate", validate))

	var validator pipeline.Validator
	if validate {
		validator = pipeline.StaticValidator(sandbox.NewStaticValidator(s.config.Sandbox.MaxCodeBytes))
	}
	ctrl := pipeline.NewController(s.logger, pipeline.NewCandidateGenerator(candidates...), validator, s.executor)

	done := ctrl.Run(ctx, pipeline.Request{
		GenerationContext: pipeline.GenerationContext{Prompt: request.GetString("prompt", "")},
		Handles:           s.handles(),
		MaxRetries:        maxRetries,
		Token:             pipeline.FromContext(ctx),
	}, pipeline.SinkFunc(func(e pipeline.Event) {
		s.forwardEvent(ctx, e)
	}))

	res := runResult{
		Done:    cleanDone(done),
		Summary: pipeline.FailureSummary(done, s.config.Pipeline.SummaryLimit),
	}
	if done.Table != nil {
		widget := profile.ToWidgetPayload(done.Table, maxRows)
		res.Widget = &widget
	}

	data, err := json.Marshal(res)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(ToolRunTablePipeline, "error").Inc()
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	status := "ok"
	if done.Table == nil {
		status = "failed"
	}
	metrics.ToolCallsTotal.WithLabelValues(ToolRunTablePipeline, status).Inc()

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
		IsError: done.Table == nil,
	}, nil
}

// forwardEvent sends a pipeline event to the calling client, if any.
func (s *MCPServer) forwardEvent(ctx context.Context, e pipeline.Event) {
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return
	}
	if done, ok := e.Payload.(pipeline.DonePayload); ok {
		e.Payload = cleanDone(done)
	}
	params := map[string]any{
		"level":  "info",
		"logger": "tablegen",
		"data":   e,
	}
	if err := srv.SendNotificationToClient(ctx, eventNotification, params); err != nil {
		s.logger.Debug("failed to forward pipeline event",
			zap.String("type", string(e.Type)),
			zap.Error(err))
	}
}

// executeResult is the execute_table_code tool result.
type executeResult struct {
	Widget       profile.WidgetPayload `json:"widget"`
	ExecutionLog string                `json:"execution_log"`
}

// handleExecuteTableCode handles the execute_table_code tool
func (s *MCPServer) handleExecuteTableCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}
	maxRows := request.GetInt("max_rows", s.config.Pipeline.MaxRows)

	s.logger.Info("executing code in sandbox", zap.Int("code_len", len(code)))

	result, err := s.executor.Execute(ctx, code, s.handles())
	if err != nil {
		s.logger.Error("sandbox execution failed", zap.Error(err))
		metrics.ToolCallsTotal.WithLabelValues(ToolExecuteTableCode, "failed").Inc()
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: executionFailure(err),
				},
			},
			IsError: true,
		}, nil
	}

	data, err := json.Marshal(executeResult{
		Widget:       profile.ToWidgetPayload(result.Table, maxRows),
		ExecutionLog: result.Log,
	})
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(ToolExecuteTableCode, "error").Inc()
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	s.logger.Info("code execution completed",
		zap.Int("rows", result.Table.Len()),
		zap.Int("log_len", len(result.Log)))
	metrics.ToolCallsTotal.WithLabelValues(ToolExecuteTableCode, "ok").Inc()

	return mcp.NewToolResultText(string(data)), nil
}

// sourceInfo describes a data source to clients.
type sourceInfo struct {
	Name   string `json:"name"`
	Driver string `json:"driver"`
}

// handleListDataSources handles the list_data_sources tool
func (s *MCPServer) handleListDataSources(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clients := s.handles().Sources
	infos := make([]sourceInfo, 0, len(clients))
	for name, c := range clients {
		infos = append(infos, sourceInfo{Name: name, Driver: c.Driver()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	data, err := json.Marshal(infos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	metrics.ToolCallsTotal.WithLabelValues(ToolListDataSources, "ok").Inc()
	return mcp.NewToolResultText(string(data)), nil
}

func (s *MCPServer) handles() sandbox.Handles {
	if s.sources == nil {
		return sandbox.Handles{Sources: map[string]datasource.Client{}}
	}
	return sandbox.Handles{Sources: s.sources.Clients()}
}

// cleanDone normalizes the table cells so the payload can be encoded.
func cleanDone(done pipeline.DonePayload) pipeline.DonePayload {
	done.Table = profile.CleanTable(done.Table)
	return done
}

// executionFailure renders an executor error with its trace and output.
func executionFailure(err error) string {
	var execErr *sandbox.ExecutionError
	if !errors.As(err, &execErr) {
		return fmt.Sprintf("Execution failed: %v", err)
	}
	msg := "Execution failed: " + execErr.Message
	if execErr.Trace != "" {
		msg += "\n" + execErr.Trace
	}
	if execErr.Output != "" {
		msg += "\n\nOutput:\n" + execErr.Output
	}
	return msg
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	if s.http == nil {
		return errors.New("http transport is not configured")
	}
	return s.http.Start(fmt.Sprintf(":%d", port))
}

// Shutdown stops the HTTP transport if it was started.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("stopping MCP server on HTTP")
	return s.http.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
