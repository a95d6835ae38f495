package model

import "time"

// Shared defaults used by the CLI and the HTTP API.
const (
	DefaultFetchTimeout = 20 * time.Second
	DefaultSource       = "default"
)
