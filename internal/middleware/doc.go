// Package middleware provides HTTP middleware components for the Box MCP server.
//
// # Auth Gate
//
// The Gate decides, per inbound request, whether to forward or reject it. The
// decision depends on the MCP auth mode (how callers authenticate to this
// server) and the Box auth mode (how this server authenticates to Box):
//
//   - none: requests are forwarded, unless Box auth is mcp_client, in which
//     case a Bearer token is required and handed on to the Box client.
//   - token: the Bearer value must equal BOX_MCP_SERVER_AUTH_TOKEN.
//   - oauth: a Bearer token is required and handed on to the Box client.
//     Box auth is always mcp_client in this mode.
//
// Tokens are not verified locally in the bearer modes. Box rejects an
// invalid token on the first API call made with it.
//
// The OAuth discovery paths listed in PublicPaths bypass the gate in every
// mode. Rejections carry an OAuth style JSON body and a WWW-Authenticate
// challenge pointing at the protected resource metadata:
//
//	HTTP/1.1 401 Unauthorized
//	WWW-Authenticate: Bearer realm="OAuth", resource_metadata="/.well-known/oauth-protected-resource"
//
//	{"error":"invalid_request","error_description":"Missing Authorization header"}
//
// # Usage
//
//	gate := middleware.NewGate(cfg, metrics)
//	handler := middleware.CORS(gate.Middleware(mux))
//
// # Token Context
//
// In the bearer modes the gate injects the caller's token into the request
// context. Downstream handlers can retrieve it using the Token function:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    token := middleware.Token(r.Context())
//	    // Use token as needed
//	}
//
// MCP tool handlers receive the request headers instead of the HTTP request;
// BearerToken extracts the same token from them.
//
// # CORS
//
// CORS answers preflight requests and lets browser clients read the
// WWW-Authenticate header of rejections. It must wrap the gate so that
// preflights, which carry no Authorization header, are never rejected.
package middleware
