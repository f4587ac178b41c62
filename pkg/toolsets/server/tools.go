package server

import (
	"context"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/pkg/response"
	"github.com/koeppj/mcp-server-box/pkg/utils"
	"github.com/koeppj/mcp-server-box/pkg/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	toolsSet    = "server"
	toolsSetAnn = "toolset"
)

// Info describes the running server. Host and Port are only reported for
// the HTTP transports.
type Info struct {
	Name      string `json:"server_name"`
	Version   string `json:"version"`
	Transport string `json:"transport"`
	McpAuth   string `json:"mcp_auth_type"`
	BoxAuth   string `json:"box_auth_type"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
}

// Tools contains the server introspection tools.
type Tools struct {
	info Info
}

// NewTools creates and returns a new Tools instance for cfg.
func NewTools(cfg *config.Config) *Tools {
	info := Info{
		Name:      cfg.Server.Name,
		Version:   version.GetVersion(),
		Transport: cfg.Server.Transport.String(),
		McpAuth:   cfg.Server.McpAuth.String(),
		BoxAuth:   cfg.Server.BoxAuth.String(),
	}
	if cfg.Server.Transport != config.TransportStdio {
		info.Host = cfg.Server.Host
		info.Port = cfg.Server.Port
	}

	return &Tools{info: info}
}

// AddTools registers the server tools with the provided MCP server.
func (t *Tools) AddTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "mcp_server_info",
		Meta: map[string]any{
			toolsSetAnn: toolsSet,
		},
		Description: `Returns information about this MCP server.
		Returns:
		The server name, version, transport and the MCP and Box authentication types.
		Host and port are included when the server runs over HTTP.`},
		t.serverInfo,
	)
}

type serverInfoParams struct{}

func (t *Tools) serverInfo(_ context.Context, toolReq *mcp.CallToolRequest, _ serverInfoParams) (*mcp.CallToolResult, any, error) {
	log := utils.NewChildLogger(toolReq, nil)
	log.Debug("mcp_server_info called")

	result, err := response.NewToolResult(t.info)
	if err != nil {
		log.Error("failed to create mcp response", zap.Error(err))
		return nil, nil, err
	}

	return result, nil, nil
}
