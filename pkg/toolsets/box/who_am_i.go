package box

import (
	"context"

	"github.com/koeppj/mcp-server-box/pkg/response"
	"github.com/koeppj/mcp-server-box/pkg/utils"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type whoAmIParams struct{}

// whoAmI retrieves the current Box user.
func (t *Tools) whoAmI(ctx context.Context, toolReq *mcp.CallToolRequest, _ whoAmIParams) (*mcp.CallToolResult, any, error) {
	log := utils.NewChildLogger(toolReq, nil)
	log.Debug("box_who_am_i called")

	boxClient, err := t.activeClient(ctx, toolReq)
	if err != nil {
		log.Error("failed to get Box client", zap.Error(err))
		return nil, nil, err
	}

	user, err := boxClient.CurrentUser(ctx)
	if err != nil {
		log.Error("failed to get current user", zap.Error(err))
		return nil, nil, err
	}

	result, err := response.NewToolResult(user)
	if err != nil {
		log.Error("failed to create mcp response", zap.Error(err))
		return nil, nil, err
	}

	return result, nil, nil
}
