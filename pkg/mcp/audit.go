package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/middleware"
)

// maxParamLogLength bounds each logged string argument.
const maxParamLogLength = logging.MaxQueryLogLength

// ToolCallLogger logs MCP tool calls with their duration and outcome.
type ToolCallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolCallLogger creates a ToolCallLogger.
func NewToolCallLogger(logger *zap.Logger) *ToolCallLogger {
	return &ToolCallLogger{logger: logger.Named("mcp-tools")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *ToolCallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *ToolCallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *ToolCallLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	fields := a.fields(ctx, req, duration)

	if result != nil && result.IsError {
		a.logger.Info("MCP tool returned an error result", fields...)
		return
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *ToolCallLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	fields := a.fields(ctx, req, a.elapsed(id))
	fields = append(fields, zap.String("error", logging.SanitizeError(err)))
	a.logger.Error("MCP tool call failed", fields...)
}

func (a *ToolCallLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

func (a *ToolCallLogger) fields(ctx context.Context, req *mcplib.CallToolRequest, d time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("request_id", middleware.RequestIDFromContext(ctx)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Duration("duration", d),
	}
}

// sanitizeParams truncates and redacts string arguments before logging.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			sanitized[k] = logging.SanitizeText(logging.TruncateString(s, maxParamLogLength))
			continue
		}
		sanitized[k] = v
	}
	return sanitized
}
