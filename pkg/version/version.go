package version

// Name is the program name reported to MCP clients and to Box.
const Name = "mcp-server-box"

var (
	// Version of the server, set via ldflags at build time.
	Version = "dev"
	// GitCommit of the Version, set via ldflags at build time.
	GitCommit = ""
)

// GetVersion returns the version of the server,
// including the git commit if available.
func GetVersion() string {
	version := Version

	if GitCommit != "" {
		version += " (" + GitCommit + ")"
	}

	return version
}

// UserAgent returns the User-Agent sent on outbound Box requests.
func UserAgent() string {
	return Name + "/" + Version
}
