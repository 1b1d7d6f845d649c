package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/logging"
)

// healthCheckTimeout bounds the graph store connectivity check.
const healthCheckTimeout = 3 * time.Second

// ConnectivityChecker checks that the graph store answers. *graph.Client implements it.
type ConnectivityChecker interface {
	VerifyConnectivity(ctx context.Context) error
}

// HealthToolDeps contains the dependencies of the health tool. Graph and
// Schema are optional; a nil dependency is reported as unchecked.
type HealthToolDeps struct {
	Version string
	Graph   ConnectivityChecker
	Schema  SchemaSource
	Logger  *zap.Logger
}

type healthResult struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Graph         string `json:"graph"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server. The tool
// reports the server version, whether the graph store answers, and the
// version of the schema used for query generation.
func RegisterHealthTool(s *server.MCPServer, deps *HealthToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health, graph store connectivity and the current schema version"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(checkHealth(ctx, deps))
	})
}

func checkHealth(ctx context.Context, deps *HealthToolDeps) healthResult {
	result := healthResult{Status: "ok", Version: deps.Version, Graph: "unchecked"}
	if deps.Graph == nil {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := deps.Graph.VerifyConnectivity(ctx); err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("Graph store health check failed", zap.String("error", logging.SanitizeError(err)))
		}
		result.Status = "degraded"
		result.Graph = "unavailable"
		result.Error = logging.SanitizeError(err)
		return result
	}
	result.Graph = "ok"

	if deps.Schema != nil {
		if desc, err := deps.Schema.Get(ctx); err == nil {
			result.SchemaVersion = desc.Version()
		}
	}
	return result
}
