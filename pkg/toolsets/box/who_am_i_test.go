package box

import (
	"context"
	"net/http"
	"testing"

	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/koeppj/mcp-server-box/internal/session"
	"github.com/koeppj/mcp-server-box/internal/session/mocks"
	"github.com/koeppj/mcp-server-box/pkg/client"
	"github.com/koeppj/mcp-server-box/pkg/client/test"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWhoAmI(t *testing.T) {
	fake := test.NewFakeBox(t)
	fake.ValidToken = "good-token"
	boxClient := func(token string) *client.Client {
		return client.NewClient(client.StaticToken(token), client.WithBaseURL(fake.URL))
	}

	tests := map[string]struct {
		mode          config.UpstreamAuthMode
		forwardBearer bool
		requestToken  string
		mockProvider  func(ctlr *gomock.Controller) session.ClientProvider
		expectedID    string
		expectedError string
		apiError      bool
	}{
		"shared client": {
			mode: config.UpstreamAuthCCG,
			mockProvider: func(ctlr *gomock.Controller) session.ClientProvider {
				mock := mocks.NewMockClientProvider(ctlr)
				mock.EXPECT().Build(gomock.Any(), config.UpstreamAuthCCG).Return(boxClient("good-token"), nil)
				return mock
			},
			expectedID: "11446498",
		},
		"shared client ignores the request bearer": {
			mode:          config.UpstreamAuthJWT,
			forwardBearer: true,
			requestToken:  "someone-else",
			mockProvider: func(ctlr *gomock.Controller) session.ClientProvider {
				mock := mocks.NewMockClientProvider(ctlr)
				mock.EXPECT().Build(gomock.Any(), config.UpstreamAuthJWT).Return(boxClient("good-token"), nil)
				return mock
			},
			expectedID: "11446498",
		},
		"delegated uses the caller token": {
			mode:          config.UpstreamAuthDelegated,
			forwardBearer: true,
			requestToken:  "good-token",
			mockProvider: func(ctlr *gomock.Controller) session.ClientProvider {
				mock := mocks.NewMockClientProvider(ctlr)
				mock.EXPECT().Delegated("good-token").Return(boxClient("good-token"), nil)
				return mock
			},
			expectedID: "11446498",
		},
		"delegated without request token": {
			mode:          config.UpstreamAuthDelegated,
			forwardBearer: true,
			mockProvider: func(ctlr *gomock.Controller) session.ClientProvider {
				return mocks.NewMockClientProvider(ctlr)
			},
			expectedError: session.ErrNoRequestToken.Error(),
		},
		"shared secret is never forwarded": {
			mode:          config.UpstreamAuthDelegated,
			forwardBearer: false,
			requestToken:  "shared-secret",
			mockProvider: func(ctlr *gomock.Controller) session.ClientProvider {
				return mocks.NewMockClientProvider(ctlr)
			},
			expectedError: session.ErrNoRequestToken.Error(),
		},
		"box rejects the token": {
			mode:          config.UpstreamAuthDelegated,
			forwardBearer: true,
			requestToken:  "expired-token",
			mockProvider: func(ctlr *gomock.Controller) session.ClientProvider {
				mock := mocks.NewMockClientProvider(ctlr)
				mock.EXPECT().Delegated("expired-token").Return(boxClient("expired-token"), nil)
				return mock
			},
			apiError: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctlr := gomock.NewController(t)
			s, err := session.Open(context.Background(), tt.mode, tt.mockProvider(ctlr))
			require.NoError(t, err)
			tools := NewTools(s, tt.forwardBearer)

			result, _, err := tools.whoAmI(context.Background(), test.NewCallToolRequest("box_who_am_i", tt.requestToken), whoAmIParams{})

			switch {
			case tt.apiError:
				var apiErr *client.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			case tt.expectedError != "":
				assert.ErrorContains(t, err, tt.expectedError)
				assert.Nil(t, result)
			default:
				require.NoError(t, err)
				require.Len(t, result.Content, 1)
				text, ok := result.Content[0].(*mcp.TextContent)
				require.True(t, ok)
				assert.Contains(t, text.Text, `"id":"`+tt.expectedID+`"`)
				assert.Contains(t, text.Text, `"login":"ceo@example.com"`)
			}
		})
	}
}

func TestAddTools(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "v1.0.0"}, nil)
	tools := NewTools(nil, false)

	assert.NotPanics(t, func() { tools.AddTools(server) })
}
