package middleware

// OAuth discovery and registration paths. They are served without
// authentication in every mode.
const (
	PathProtectedResource      = "/.well-known/oauth-protected-resource"
	PathProtectedResourceMCP   = "/.well-known/oauth-protected-resource/mcp"
	PathProtectedResourceSSE   = "/.well-known/oauth-protected-resource/sse"
	PathAuthorizationServer    = "/.well-known/oauth-authorization-server"
	PathAuthorizationServerMCP = "/.well-known/oauth-authorization-server/mcp"
	PathAuthorizationServerSSE = "/.well-known/oauth-authorization-server/sse"
	PathRegister               = "/oauth/register"
)

// PublicPaths lists every path the auth gate lets through unconditionally.
var PublicPaths = []string{
	PathProtectedResource,
	PathProtectedResourceMCP,
	PathProtectedResourceSSE,
	PathAuthorizationServer,
	PathAuthorizationServerMCP,
	PathAuthorizationServerSSE,
	PathRegister,
}
