package box

import (
	"context"

	"github.com/koeppj/mcp-server-box/internal/session"
	"github.com/koeppj/mcp-server-box/pkg/client"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	toolsSet    = "box"
	toolsSetAnn = "toolset"
)

type clientSession interface {
	ActiveClient(ctx context.Context) (*client.Client, error)
}

// Tools contains the Box API tools.
type Tools struct {
	session clientSession
	// forwardBearer is false when the inbound bearer is the server's shared
	// secret, which must never reach Box.
	forwardBearer bool
}

// NewTools creates and returns a new Tools instance.
func NewTools(session clientSession, forwardBearer bool) *Tools {
	return &Tools{
		session:       session,
		forwardBearer: forwardBearer,
	}
}

// AddTools registers the Box tools with the provided MCP server.
func (t *Tools) AddTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "box_who_am_i",
		Meta: map[string]any{
			toolsSetAnn: toolsSet,
		},
		Description: `Returns the Box user this server is acting as.
		Returns:
		The JSON representation of the current Box user (id, name, login, status, role).`},
		t.whoAmI,
	)
}

// activeClient returns the Box client for the request. The bearer token of
// the inbound request is adopted first when it belongs to the caller.
func (t *Tools) activeClient(ctx context.Context, toolReq *mcp.CallToolRequest) (*client.Client, error) {
	if t.forwardBearer && toolReq.Extra != nil {
		ctx = session.WithRequestHeader(ctx, toolReq.Extra.Header)
	}

	return t.session.ActiveClient(ctx)
}
