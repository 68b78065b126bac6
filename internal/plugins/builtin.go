package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"jcr/pkg/jsonc"
	jcrPlugin "jcr/pkg/plugin"
)

// builtins are the plugins selected with path "builtin".
var builtins = map[string]func() jcrPlugin.Plugin{
	"StripComments": func() jcrPlugin.Plugin { return stripComments{} },
	"Compact":       func() jcrPlugin.Plugin { return compact{} },
}

// stripComments removes // and /* */ comments outside string literals.
type stripComments struct{}

func (stripComments) ProcessRequestBody(_ context.Context, _ *url.URL, body []byte) ([]byte, error) {
	return jsonc.Strip(body), nil
}

func (stripComments) ProcessResponseBody(_ context.Context, _ *url.URL, body []byte) ([]byte, error) {
	return jsonc.Strip(body), nil
}

// compact removes insignificant whitespace. The body must already be valid
// JSON, so it is normally configured after StripComments.
type compact struct{}

func (compact) ProcessRequestBody(_ context.Context, _ *url.URL, body []byte) ([]byte, error) {
	return compactJSON(body)
}

func (compact) ProcessResponseBody(_ context.Context, _ *url.URL, body []byte) ([]byte, error) {
	return compactJSON(body)
}

func compactJSON(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return nil, fmt.Errorf("failed to compact JSON: %w", err)
	}
	return buf.Bytes(), nil
}
