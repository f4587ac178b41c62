package toolsets

import (
	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/internal/session"
	"github.com/koeppj/mcp-server-box/pkg/toolsets/box"
	"github.com/koeppj/mcp-server-box/pkg/toolsets/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolsAdder is an interface for types that can add tools to an MCP server.
type toolsAdder interface {
	AddTools(mcpServer *mcp.Server)
}

// AddAllTools adds all available tools to the MCP server.
func AddAllTools(cfg *config.Config, sess *session.Session, mcpServer *mcp.Server) {
	for _, ta := range allToolSets(cfg, sess) {
		ta.AddTools(mcpServer)
	}
}

func allToolSets(cfg *config.Config, sess *session.Session) []toolsAdder {
	// In token mode the bearer is the server's own shared secret.
	forwardBearer := cfg.Server.McpAuth != config.McpAuthToken

	return []toolsAdder{
		box.NewTools(sess, forwardBearer),
		server.NewTools(cfg),
	}
}
