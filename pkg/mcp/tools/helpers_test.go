package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWith(args any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = "ask_grants"
	req.Params.Arguments = args
	return req
}

func TestGetOptionalString(t *testing.T) {
	tests := []struct {
		name string
		args any
		want string
	}{
		{"present", map[string]any{"model": "gpt-4o"}, "gpt-4o"},
		{"trimmed", map[string]any{"model": "  gpt-4o \n"}, "gpt-4o"},
		{"missing", map[string]any{}, ""},
		{"wrong type", map[string]any{"model": 4}, ""},
		{"no arguments", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getOptionalString(requestWith(tt.args), "model"))
		})
	}
}

func TestGetOptionalBool(t *testing.T) {
	tests := []struct {
		name       string
		args       any
		defaultVal bool
		want       bool
	}{
		{"true", map[string]any{"enable_search": true}, false, true},
		{"false overrides default", map[string]any{"enable_search": false}, true, false},
		{"missing uses default", map[string]any{}, true, true},
		{"string is ignored", map[string]any{"enable_search": "yes"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getOptionalBool(requestWith(tt.args), "enable_search", tt.defaultVal))
		})
	}
}

func TestJSONResult(t *testing.T) {
	result, err := jsonResult(map[string]any{"row_count": 3})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &got))
	assert.Equal(t, float64(3), got["row_count"])

	_, err = jsonResult(make(chan int))
	assert.Error(t, err)
}
