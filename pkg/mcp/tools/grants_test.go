package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
	"github.com/ekaya-inc/grantgraph/pkg/services"
)

type stubPipeline struct {
	got  []models.QueryRequest
	resp *models.QueryResponse
}

func (p *stubPipeline) Run(ctx context.Context, req models.QueryRequest) *models.QueryResponse {
	resp, _ := p.RunWithTrace(ctx, req)
	return resp
}

func (p *stubPipeline) RunWithTrace(_ context.Context, req models.QueryRequest) (*models.QueryResponse, *services.Trace) {
	p.got = append(p.got, req)
	return p.resp, &services.Trace{}
}

type stubSchema struct {
	desc *schema.Descriptor
	err  error
}

func (s stubSchema) Get(context.Context) (*schema.Descriptor, error) { return s.desc, s.err }

type toolResponse struct {
	Result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newToolServer(deps *GrantToolDeps) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterGrantTools(s, deps)
	RegisterHealthTool(s, &HealthToolDeps{Version: "1.2.3"})
	return s
}

func send(t *testing.T, s *server.MCPServer, body string) toolResponse {
	t.Helper()
	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(body)))
	require.NoError(t, err)
	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	argJSON, err := json.Marshal(args)
	require.NoError(t, err)
	return send(t, s, fmt.Sprintf(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":%q,"arguments":%s},"id":1}`, name, argJSON))
}

func TestRegisterGrantTools_List(t *testing.T) {
	s := newToolServer(&GrantToolDeps{Pipeline: &stubPipeline{}, Schema: stubSchema{}, Logger: zap.NewNop()})

	resp := send(t, s, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask_grants", "get_graph_schema", "health"}, names)
}

func TestAskGrantsTool(t *testing.T) {
	pipeline := &stubPipeline{resp: &models.QueryResponse{
		Question: "CRISPR grants",
		Results:  []map[string]any{{"grant_title": "CRISPR"}},
		RowCount: 1,
		Summary:  "## Overview",
	}}
	s := newToolServer(&GrantToolDeps{Pipeline: pipeline, Logger: zap.NewNop()})

	resp := callTool(t, s, "ask_grants", map[string]any{
		"question":      "CRISPR grants",
		"model":         "gpt-4o",
		"enable_search": true,
	})

	require.Nil(t, resp.Error)
	require.False(t, resp.Result.IsError)
	require.Len(t, pipeline.got, 1)
	assert.Equal(t, models.QueryRequest{Question: "CRISPR grants", Model: llm.ModelGPT4o, EnableSearch: true}, pipeline.got[0])

	var out models.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &out))
	assert.Equal(t, 1, out.RowCount)
	assert.Equal(t, "## Overview", out.Summary)
}

func TestAskGrantsTool_PipelineError(t *testing.T) {
	msg := "The generated query was rejected because it attempted to modify data."
	pipeline := &stubPipeline{resp: &models.QueryResponse{Error: &msg, ErrorKind: "unsafe_query"}}
	s := newToolServer(&GrantToolDeps{Pipeline: pipeline, Logger: zap.NewNop()})

	resp := callTool(t, s, "ask_grants", map[string]any{"question": "delete all grants"})

	require.True(t, resp.Result.IsError)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &out))
	assert.Equal(t, "unsafe_query", out.Code)
	assert.Equal(t, msg, out.Message)
}

func TestAskGrantsTool_MissingQuestion(t *testing.T) {
	pipeline := &stubPipeline{}
	s := newToolServer(&GrantToolDeps{Pipeline: pipeline, Logger: zap.NewNop()})

	resp := callTool(t, s, "ask_grants", map[string]any{})

	assert.True(t, resp.Result.IsError)
	assert.Empty(t, pipeline.got)
}

func TestGraphSchemaTool(t *testing.T) {
	desc := schema.Default()
	s := newToolServer(&GrantToolDeps{Pipeline: &stubPipeline{}, Schema: stubSchema{desc: desc}, Logger: zap.NewNop()})

	resp := callTool(t, s, "get_graph_schema", map[string]any{})

	require.Nil(t, resp.Error)
	var out graphSchemaResult
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &out))
	assert.Equal(t, desc.Version(), out.Version)
	assert.Equal(t, desc.PromptText(), out.Schema)
	assert.Contains(t, out.Labels, "Grant")
}
