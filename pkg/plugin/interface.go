package plugin

import (
	"context"
	"net/url"
)

// Plugin defines the interface that all jcr plugins must implement.
// Plugins receive the body of a JSON request on its way to the backend, or the
// body of a JSON response on its way back to the client, and return the body
// that should replace it. Plugins run in the order they are configured for a
// MIME type and each one sees the output of the previous one.
type Plugin interface {
	// ProcessRequestBody transforms a request body before it is forwarded.
	// It should return an error if processing fails.
	ProcessRequestBody(ctx context.Context, url *url.URL, body []byte) ([]byte, error)

	// ProcessResponseBody transforms a response body before it is returned.
	// It should return an error if processing fails.
	ProcessResponseBody(ctx context.Context, url *url.URL, body []byte) ([]byte, error)
}

// RequestPlugin is a convenience interface for plugins that only handle requests.
type RequestPlugin interface {
	ProcessRequestBody(ctx context.Context, url *url.URL, body []byte) ([]byte, error)
}

// ResponsePlugin is a convenience interface for plugins that only handle responses.
type ResponsePlugin interface {
	ProcessResponseBody(ctx context.Context, url *url.URL, body []byte) ([]byte, error)
}
