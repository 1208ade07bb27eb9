package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and transports.
// Services translate them into domain errors at their boundary.
var (
	// ErrNotFound means nothing is checkpointed under the requested key.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a backend or push connection cannot serve right now.
	ErrUnavailable = errors.New("unavailable")
)
