package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
	"github.com/ekaya-inc/grantgraph/pkg/services"
)

// SchemaSource supplies the current schema descriptor.
type SchemaSource interface {
	Get(ctx context.Context) (*schema.Descriptor, error)
}

// GrantToolDeps contains the dependencies of the grant tools.
type GrantToolDeps struct {
	Pipeline services.QueryPipeline
	Schema   SchemaSource
	Logger   *zap.Logger
}

// RegisterGrantTools adds ask_grants and get_graph_schema to the server.
func RegisterGrantTools(s *server.MCPServer, deps *GrantToolDeps) {
	registerAskGrantsTool(s, deps)
	registerGraphSchemaTool(s, deps)
}

func modelIDs() []string {
	catalogue := llm.Models()
	ids := make([]string, len(catalogue))
	for i, m := range catalogue {
		ids[i] = string(m.ID)
	}
	return ids
}

func registerAskGrantsTool(s *server.MCPServer, deps *GrantToolDeps) {
	tool := mcp.NewTool(
		"ask_grants",
		mcp.WithDescription(
			"Answer a natural-language question about research grants, researchers and institutions. "+
				"Generates a read-only Cypher query, runs it against the grant graph and returns the rows "+
				"with a markdown summary.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. 'CRISPR grants over $1M since 2020'"),
		),
		mcp.WithString(
			"model",
			mcp.Description(fmt.Sprintf("Optional: language model to use (default: %s)", llm.DefaultModel)),
			mcp.Enum(modelIDs()...),
		),
		mcp.WithBoolean(
			"enable_search",
			mcp.Description("Add web references related to the results (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", "question is required"), nil
		}

		resp := deps.Pipeline.Run(ctx, models.QueryRequest{
			Question:     question,
			Model:        llm.ModelID(getOptionalString(req, "model")),
			EnableSearch: getOptionalBool(req, "enable_search", false),
		})
		if !resp.Succeeded() {
			return NewErrorResultWithDetails(resp.ErrorKind, *resp.Error, map[string]any{
				"generated_query": resp.GeneratedQuery,
			}), nil
		}
		return jsonResult(resp)
	})
}

type graphSchemaResult struct {
	Version string              `json:"version"`
	Source  string              `json:"source"`
	Schema  string              `json:"schema"`
	Labels  map[string][]string `json:"labels"`
}

func registerGraphSchemaTool(s *server.MCPServer, deps *GrantToolDeps) {
	tool := mcp.NewTool(
		"get_graph_schema",
		mcp.WithDescription(
			"Returns the node labels, properties and relationship types of the grant graph. "+
				"Use it to phrase questions in terms the graph can answer.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		desc, err := deps.Schema.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph schema: %w", err)
		}

		labels := make(map[string][]string)
		for _, l := range desc.Labels() {
			labels[l] = desc.Properties(l)
		}
		return jsonResult(graphSchemaResult{
			Version: desc.Version(),
			Source:  desc.Source(),
			Schema:  desc.PromptText(),
			Labels:  labels,
		})
	})
}
