package utils

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// NewChildLogger returns the global logger annotated with the tool name, the
// MCP session id when there is one and any extra fields.
func NewChildLogger(toolReq *mcp.CallToolRequest, extras map[string]string) *zap.Logger {
	var args []zap.Field
	if toolReq.Params != nil {
		args = append(args, zap.String("tool", toolReq.Params.Name))
	}
	if toolReq.Session != nil && toolReq.Session.ID() != "" {
		args = append(args, zap.String("mcp-session-id", toolReq.Session.ID()))
	}
	for k, v := range extras {
		args = append(args, zap.String(k, v))
	}
	return zap.L().With(args...)
}
