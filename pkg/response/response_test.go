package response

import (
	"math"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMcpResponse(t *testing.T) {
	tests := map[string]struct {
		obj      any
		expected string
	}{
		"struct": {
			obj: struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			}{ID: "42", Name: "box"},
			expected: `{"llm":{"id":"42","name":"box"}}`,
		},
		"map": {
			obj:      map[string]any{"transport": "http"},
			expected: `{"llm":{"transport":"http"}}`,
		},
		"nil": {
			obj:      nil,
			expected: `{"llm":"no data returned"}`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := CreateMcpResponse(tt.obj)

			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, got)
		})
	}
}

func TestCreateMcpResponseMarshalError(t *testing.T) {
	_, err := CreateMcpResponse(math.Inf(1))

	assert.ErrorContains(t, err, "failed to marshal response")
}

func TestNewToolResult(t *testing.T) {
	result, err := NewToolResult(map[string]string{"id": "1"})

	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"llm":{"id":"1"}}`, text.Text)
	assert.False(t, result.IsError)
}
