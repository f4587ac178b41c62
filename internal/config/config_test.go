package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		transport         Transport
		mcpAuth           McpAuthMode
		boxAuth           UpstreamAuthMode
		expectedMcpAuth   McpAuthMode
		expectedBoxAuth   UpstreamAuthMode
		expectedOverrides int
	}{
		"stdio forces mcp auth none": {
			transport:         TransportStdio,
			mcpAuth:           McpAuthToken,
			boxAuth:           UpstreamAuthCCG,
			expectedMcpAuth:   McpAuthNone,
			expectedBoxAuth:   UpstreamAuthCCG,
			expectedOverrides: 1,
		},
		"stdio with oauth is forced to none before box auth is considered": {
			transport:         TransportStdio,
			mcpAuth:           McpAuthOAuth,
			boxAuth:           UpstreamAuthJWT,
			expectedMcpAuth:   McpAuthNone,
			expectedBoxAuth:   UpstreamAuthJWT,
			expectedOverrides: 1,
		},
		"mcp oauth forces delegated box auth": {
			transport:         TransportHTTP,
			mcpAuth:           McpAuthOAuth,
			boxAuth:           UpstreamAuthCCG,
			expectedMcpAuth:   McpAuthOAuth,
			expectedBoxAuth:   UpstreamAuthDelegated,
			expectedOverrides: 1,
		},
		"http token mode is left alone": {
			transport:       TransportHTTP,
			mcpAuth:         McpAuthToken,
			boxAuth:         UpstreamAuthOAuth,
			expectedMcpAuth: McpAuthToken,
			expectedBoxAuth: UpstreamAuthOAuth,
		},
		"sse oauth already delegated": {
			transport:       TransportSSE,
			mcpAuth:         McpAuthOAuth,
			boxAuth:         UpstreamAuthDelegated,
			expectedMcpAuth: McpAuthOAuth,
			expectedBoxAuth: UpstreamAuthDelegated,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.Transport = test.transport
			cfg.Server.McpAuth = test.mcpAuth
			cfg.Server.BoxAuth = test.boxAuth

			overrides := cfg.Normalize()

			assert.Equal(t, test.expectedMcpAuth, cfg.Server.McpAuth)
			assert.Equal(t, test.expectedBoxAuth, cfg.Server.BoxAuth)
			assert.Len(t, overrides, test.expectedOverrides)
		})
	}
}

func TestStdioAlwaysForcesNone(t *testing.T) {
	for _, mode := range []McpAuthMode{McpAuthNone, McpAuthToken, McpAuthOAuth} {
		cfg := Default()
		cfg.Server.Transport = TransportStdio
		cfg.Server.McpAuth = mode

		cfg.Normalize()

		assert.Equal(t, McpAuthNone, cfg.Server.McpAuth, "requested %s", mode)
	}
}

func TestParseModes(t *testing.T) {
	mode, err := ParseUpstreamAuthMode("MCP_CLIENT")
	require.NoError(t, err)
	assert.Equal(t, UpstreamAuthDelegated, mode)

	_, err = ParseMcpAuthMode("basic")
	assert.ErrorContains(t, err, "must be one of: none, token, oauth")

	transport, err := ParseTransport(" http ")
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, transport)

	_, err = ParseSubjectType("group")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Server.BoxAuth = "basic"
	assert.ErrorContains(t, cfg.Validate(), "invalid Box auth type")

	cfg = Default()
	cfg.Server.Transport = TransportHTTP
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "invalid port")
}

func TestValidateCanonicalizesModes(t *testing.T) {
	tests := map[string]struct {
		transport     Transport
		mcpAuth       McpAuthMode
		boxAuth       UpstreamAuthMode
		expectedTrans Transport
		expectedMcp   McpAuthMode
		expectedBox   UpstreamAuthMode
	}{
		"mixed case": {
			transport:     "HTTP",
			mcpAuth:       "Token",
			boxAuth:       "CCG",
			expectedTrans: TransportHTTP,
			expectedMcp:   McpAuthToken,
			expectedBox:   UpstreamAuthCCG,
		},
		"surrounding spaces": {
			transport:     " stdio ",
			mcpAuth:       "OAuth ",
			boxAuth:       " MCP_Client",
			expectedTrans: TransportStdio,
			expectedMcp:   McpAuthOAuth,
			expectedBox:   UpstreamAuthDelegated,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.Transport = tt.transport
			cfg.Server.McpAuth = tt.mcpAuth
			cfg.Server.BoxAuth = tt.boxAuth

			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.expectedTrans, cfg.Server.Transport)
			assert.Equal(t, tt.expectedMcp, cfg.Server.McpAuth)
			assert.Equal(t, tt.expectedBox, cfg.Server.BoxAuth)
		})
	}
}

func TestMixedCaseStdioFromFileForcesNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  transport: STDIO\n  mcpAuthType: token\n"), 0o600))

	cfg, err := load(path, lookupFrom(nil))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	cfg.Normalize()

	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, McpAuthNone, cfg.Server.McpAuth)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8005, cfg.Server.Port)
	assert.Equal(t, McpAuthToken, cfg.Server.McpAuth)
	assert.Equal(t, UpstreamAuthOAuth, cfg.Server.BoxAuth)
	assert.Equal(t, ".oauth-protected-resource.json", cfg.McpAuth.ProtectedResourceMetadataFile)
	assert.Equal(t, "https://account.box.com/.well-known/oauth-authorization-server", cfg.McpAuth.AuthorizationServerMetadataURL)
}

func TestLoadEnvironment(t *testing.T) {
	cfg, err := load("", lookupFrom(map[string]string{
		EnvClientID:                      "client-id",
		EnvClientSecret:                  "client-secret",
		EnvSubjectType:                   "enterprise",
		EnvSubjectID:                     "42",
		EnvPrivateKeyPassphrase:          "pass",
		EnvAuthToken:                     "secret",
		EnvProtectedResourceMetadataFile: "/etc/box/prm.json",
		EnvLogLevel:                      "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "client-id", cfg.BoxAPI.ClientID)
	assert.Equal(t, "client-secret", cfg.BoxAPI.ClientSecret)
	assert.Equal(t, "enterprise", cfg.BoxAPI.SubjectType)
	assert.Equal(t, "42", cfg.BoxAPI.SubjectID)
	assert.Equal(t, "pass", cfg.BoxAPI.PrivateKeyPassphrase)
	assert.Equal(t, "secret", cfg.McpAuth.AuthToken)
	assert.Equal(t, "/etc/box/prm.json", cfg.McpAuth.ProtectedResourceMetadataFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  transport: http
  port: 9000
  mcpAuthType: oauth
boxApi:
  clientId: from-file
  clientSecret: file-secret
mcpAuth:
  authToken: file-token
`), 0o600))

	cfg, err := load(path, lookupFrom(map[string]string{
		EnvClientID: "from-env",
	}))
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, McpAuthOAuth, cfg.Server.McpAuth)
	assert.Equal(t, "from-env", cfg.BoxAPI.ClientID)
	assert.Equal(t, "file-secret", cfg.BoxAPI.ClientSecret)
	assert.Equal(t, "file-token", cfg.McpAuth.AuthToken)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), lookupFrom(nil))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadDotEnvMissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOX_TEST_DOTENV_A=from-file\nBOX_TEST_DOTENV_B=from-file\n"), 0o600))
	t.Setenv("BOX_TEST_DOTENV_A", "from-env")
	t.Setenv("BOX_TEST_DOTENV_B", "")
	os.Unsetenv("BOX_TEST_DOTENV_B")

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("BOX_TEST_DOTENV_B") })

	assert.Equal(t, "from-env", os.Getenv("BOX_TEST_DOTENV_A"))
	assert.Equal(t, "from-file", os.Getenv("BOX_TEST_DOTENV_B"))
}

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
