package config

import (
	"fmt"
)

const (
	defaultHost                           = "localhost"
	defaultPort                           = 8005
	defaultServerName                     = "Box Community MCP"
	defaultProtectedResourceMetadataFile  = ".oauth-protected-resource.json"
	defaultAuthorizationServerMetadataURL = "https://account.box.com/.well-known/oauth-authorization-server"
	defaultLogLevel                       = "info"
)

// Config is the complete application configuration. It is built once at
// startup and passed by pointer to every component that needs it.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	BoxAPI  BoxAPIConfig  `yaml:"boxApi"`
	McpAuth McpAuthConfig `yaml:"mcpAuth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the MCP server settings.
type ServerConfig struct {
	Name      string           `yaml:"name"`
	Transport Transport        `yaml:"transport"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	McpAuth   McpAuthMode      `yaml:"mcpAuthType"`
	BoxAuth   UpstreamAuthMode `yaml:"boxAuthType"`

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Metrics are not served when empty.
	MetricsAddr string `yaml:"metricsAddr"`
}

// BoxAPIConfig holds the credentials used to build the Box API client.
// Which fields are required depends on the selected UpstreamAuthMode.
type BoxAPIConfig struct {
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`

	// CCG and JWT
	SubjectType string `yaml:"subjectType"`
	SubjectID   string `yaml:"subjectId"`

	// JWT
	PublicKeyID          string `yaml:"publicKeyId"`
	PrivateKey           string `yaml:"privateKey"`
	PrivateKeyPassphrase string `yaml:"privateKeyPassphrase"`
	JWTConfigFile        string `yaml:"jwtConfigFile"`

	// TokenCacheDir is where one token file per identity is kept.
	TokenCacheDir string `yaml:"tokenCacheDir"`
}

// McpAuthConfig holds the settings for authenticating inbound MCP callers
// and for the OAuth discovery endpoints.
type McpAuthConfig struct {
	// AuthToken is the shared secret expected in token mode.
	AuthToken string `yaml:"authToken"`

	ProtectedResourceMetadataFile  string `yaml:"protectedResourceMetadataFile"`
	AuthorizationServerMetadataURL string `yaml:"authorizationServerMetadataUrl"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Override records a setting that Normalize changed.
type Override struct {
	Setting string
	From    string
	To      string
	Reason  string
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      defaultServerName,
			Transport: TransportStdio,
			Host:      defaultHost,
			Port:      defaultPort,
			McpAuth:   McpAuthToken,
			BoxAuth:   UpstreamAuthOAuth,
		},
		McpAuth: McpAuthConfig{
			ProtectedResourceMetadataFile:  defaultProtectedResourceMetadataFile,
			AuthorizationServerMetadataURL: defaultAuthorizationServerMetadataURL,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}

// Normalize enforces the combinations the server supports:
//   - the stdio transport has no HTTP layer, so MCP auth is always none;
//   - MCP OAuth hands the caller's token to Box, so Box auth is always mcp_client.
//
// It returns one Override per setting it changed.
func (c *Config) Normalize() []Override {
	var overrides []Override

	if c.Server.Transport == TransportStdio && c.Server.McpAuth != McpAuthNone {
		overrides = append(overrides, Override{
			Setting: "mcp-auth-type",
			From:    c.Server.McpAuth.String(),
			To:      McpAuthNone.String(),
			Reason:  "MCP auth type must be 'none' when using stdio transport",
		})
		c.Server.McpAuth = McpAuthNone
	}

	if c.Server.McpAuth == McpAuthOAuth && c.Server.BoxAuth != UpstreamAuthDelegated {
		overrides = append(overrides, Override{
			Setting: "box-auth-type",
			From:    c.Server.BoxAuth.String(),
			To:      UpstreamAuthDelegated.String(),
			Reason:  "Box auth type must be 'mcp_client' when using MCP OAuth authentication",
		})
		c.Server.BoxAuth = UpstreamAuthDelegated
	}

	return overrides
}

// Validate checks that every enumerated setting holds a known value and
// rewrites each one to its canonical spelling.
func (c *Config) Validate() error {
	var err error
	if c.Server.Transport, err = ParseTransport(c.Server.Transport.String()); err != nil {
		return err
	}
	if c.Server.McpAuth, err = ParseMcpAuthMode(c.Server.McpAuth.String()); err != nil {
		return err
	}
	if c.Server.BoxAuth, err = ParseUpstreamAuthMode(c.Server.BoxAuth.String()); err != nil {
		return err
	}
	if c.Server.Transport != TransportStdio && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// Addr returns the host:port the HTTP transports listen on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
