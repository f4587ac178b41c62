package response

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPResponse represents the response returned by the MCP server
type MCPResponse struct {
	// LLM response to be sent to the LLM
	LLM any `json:"llm"`
}

// CreateMcpResponse marshals obj into the text sent back to the MCP client.
// A nil obj produces a short placeholder so the LLM always gets an answer.
func CreateMcpResponse(obj any) (string, error) {
	resp := MCPResponse{LLM: obj}
	if obj == nil {
		resp.LLM = "no data returned"
	}

	bytes, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}

	return string(bytes), nil
}

// NewToolResult wraps obj in a CallToolResult with a single text content.
func NewToolResult(obj any) (*mcp.CallToolResult, error) {
	text, err := CreateMcpResponse(obj)
	if err != nil {
		return nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}
