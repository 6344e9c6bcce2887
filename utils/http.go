// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for fetching provider-hosted image assets.
// Generated images can be several MB, so the timeout is generous.
var HTTPClient = &http.Client{
	Timeout: 120 * time.Second,
}
