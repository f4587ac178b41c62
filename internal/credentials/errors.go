package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koeppj/mcp-server-box/internal/config"
)

// ErrNotAuthorized is returned when OAuth mode has no cached token to
// start from. The interactive authorization must be completed first.
var ErrNotAuthorized = errors.New("no cached Box OAuth token, complete the OAuth authorization flow first")

// ConfigurationError reports credential settings that are missing or invalid
// for a trust model. It is always returned before any network call is made.
type ConfigurationError struct {
	Mode config.UpstreamAuthMode
	// Missing lists, by configuration name, every required setting that
	// was not supplied.
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid %s configuration", e.Mode)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

type requirement struct {
	name  string
	value string
}

// requireSettings returns a ConfigurationError naming every empty requirement, or
// nil when all are set.
func requireSettings(mode config.UpstreamAuthMode, reqs ...requirement) error {
	var missing []string
	for _, r := range reqs {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ConfigurationError{Mode: mode, Missing: missing}
}
