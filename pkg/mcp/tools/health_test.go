package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/schema"
)

type stubChecker struct {
	err   error
	calls int
}

func (c *stubChecker) VerifyConnectivity(context.Context) error {
	c.calls++
	return c.err
}

func TestHealthTool(t *testing.T) {
	desc := schema.Default()

	tests := []struct {
		name    string
		graph   *stubChecker
		schema  SchemaSource
		want    healthResult
		wantErr bool
	}{
		{
			name: "no graph configured",
			want: healthResult{Status: "ok", Version: "1.2.3", Graph: "unchecked"},
		},
		{
			name:   "graph reachable",
			graph:  &stubChecker{},
			schema: stubSchema{desc: desc},
			want:   healthResult{Status: "ok", Version: "1.2.3", Graph: "ok", SchemaVersion: desc.Version()},
		},
		{
			name:   "schema not loaded yet",
			graph:  &stubChecker{},
			schema: stubSchema{err: errors.New("introspection failed")},
			want:   healthResult{Status: "ok", Version: "1.2.3", Graph: "ok"},
		},
		{
			name:    "graph unreachable",
			graph:   &stubChecker{err: errors.New("connection refused")},
			schema:  stubSchema{desc: desc},
			want:    healthResult{Status: "degraded", Version: "1.2.3", Graph: "unavailable"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &HealthToolDeps{Version: "1.2.3", Schema: tt.schema, Logger: zap.NewNop()}
			if tt.graph != nil {
				deps.Graph = tt.graph
			}
			s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(s, deps)

			resp := callTool(t, s, "health", map[string]any{})
			require.Nil(t, resp.Error)
			require.NotEmpty(t, resp.Result.Content)
			assert.False(t, resp.Result.IsError, "an unreachable graph is reported, not raised")

			var got healthResult
			require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &got))
			if tt.wantErr {
				assert.Contains(t, got.Error, "connection refused")
				got.Error = ""
			}
			assert.Equal(t, tt.want, got)
			if tt.graph != nil {
				assert.Equal(t, 1, tt.graph.calls)
			}
		})
	}
}
