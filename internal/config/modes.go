package config

import (
	"fmt"
	"strings"
)

// Transport is the MCP transport the server is exposed on.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportSSE   Transport = "sse"
	TransportHTTP  Transport = "http"
)

// McpAuthMode governs how inbound MCP callers are authenticated.
type McpAuthMode string

const (
	McpAuthNone  McpAuthMode = "none"
	McpAuthToken McpAuthMode = "token"
	McpAuthOAuth McpAuthMode = "oauth"
)

// UpstreamAuthMode governs how the outbound Box API client is built.
type UpstreamAuthMode string

const (
	UpstreamAuthOAuth UpstreamAuthMode = "oauth"
	UpstreamAuthCCG   UpstreamAuthMode = "ccg"
	UpstreamAuthJWT   UpstreamAuthMode = "jwt"
	// UpstreamAuthDelegated builds a client per request from the caller's
	// own bearer token.
	UpstreamAuthDelegated UpstreamAuthMode = "mcp_client"
)

// SubjectType is the kind of Box identity a CCG or JWT credential acts as.
type SubjectType string

const (
	SubjectEnterprise SubjectType = "enterprise"
	SubjectUser       SubjectType = "user"
)

var (
	transports        = []Transport{TransportStdio, TransportSSE, TransportHTTP}
	mcpAuthModes      = []McpAuthMode{McpAuthNone, McpAuthToken, McpAuthOAuth}
	upstreamAuthModes = []UpstreamAuthMode{UpstreamAuthOAuth, UpstreamAuthCCG, UpstreamAuthJWT, UpstreamAuthDelegated}
	subjectTypes      = []SubjectType{SubjectEnterprise, SubjectUser}
)

func (t Transport) String() string        { return string(t) }
func (m McpAuthMode) String() string      { return string(m) }
func (m UpstreamAuthMode) String() string { return string(m) }
func (s SubjectType) String() string      { return string(s) }

// ParseTransport returns the Transport named by s.
func ParseTransport(s string) (Transport, error) {
	return parse("transport", s, transports)
}

// ParseMcpAuthMode returns the McpAuthMode named by s.
func ParseMcpAuthMode(s string) (McpAuthMode, error) {
	return parse("MCP auth type", s, mcpAuthModes)
}

// ParseUpstreamAuthMode returns the UpstreamAuthMode named by s.
func ParseUpstreamAuthMode(s string) (UpstreamAuthMode, error) {
	return parse("Box auth type", s, upstreamAuthModes)
}

// ParseSubjectType returns the SubjectType named by s.
func ParseSubjectType(s string) (SubjectType, error) {
	return parse("subject type", s, subjectTypes)
}

// TransportNames lists the accepted transport values, for flag help.
func TransportNames() []string { return names(transports) }

// McpAuthModeNames lists the accepted MCP auth values, for flag help.
func McpAuthModeNames() []string { return names(mcpAuthModes) }

// UpstreamAuthModeNames lists the accepted Box auth values, for flag help.
func UpstreamAuthModeNames() []string { return names(upstreamAuthModes) }

func parse[T ~string](what, s string, valid []T) (T, error) {
	for _, v := range valid {
		if string(v) == strings.ToLower(strings.TrimSpace(s)) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, must be one of: %s", what, s, strings.Join(names(valid), ", "))
}

func names[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
