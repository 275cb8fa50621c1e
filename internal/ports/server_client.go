package ports

import "context"

// ServerClient talks to a sidecar instance over its local HTTP endpoints.
// Probe methods never return transport errors: any fault degrades to false.
type ServerClient interface {
	// Healthy reports whether GET /health answered 200.
	Healthy(ctx context.Context) bool

	// RequestStop issues POST /api/v1/server/stop and reports whether the
	// sidecar accepted it.
	RequestStop(ctx context.Context) bool

	// Running reports whether GET /api/v1/server/status answered 2xx.
	Running(ctx context.Context) bool

	// Post sends payload as JSON to path and returns the raw response body.
	Post(ctx context.Context, path string, payload interface{}) ([]byte, error)
}
