package discovery

import (
	"errors"
	"fmt"
)

// ErrMetadataNotConfigured is returned when the protected resource metadata
// file is missing, unreadable or holds no JSON object.
var ErrMetadataNotConfigured = errors.New("OAuth Protected Resource metadata not configured")

// UpstreamError reports a failed fetch of the upstream authorization server
// metadata. StatusCode is zero when no response was received.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authorization server metadata request to %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("authorization server metadata request to %s failed: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
