// Package render substitutes ${[ name ]} template variables in requests.
package render

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"jcr/internal/action"
)

var placeholder = regexp.MustCompile(`\$\{\[\s*([A-Za-z0-9_.\-]+)\s*\]\}`)

// Renderer resolves placeholders from a fixed set of variables.
type Renderer struct {
	vars map[string]string
}

// New returns a Renderer over the merged variable sets. Later sets override
// earlier ones.
func New(sets ...map[string]string) *Renderer {
	vars := make(map[string]string)
	for _, set := range sets {
		maps.Copy(vars, set)
	}
	return &Renderer{vars: vars}
}

// Render returns a copy of req with placeholders replaced in the URL, header
// values and body text. Any unknown variable is an error.
func (r *Renderer) Render(ctx context.Context, req action.Request) (action.Request, error) {
	if err := ctx.Err(); err != nil {
		return action.Request{}, err
	}

	missing := make(map[string]bool)
	out := req

	out.URL = r.expand(req.URL, missing)
	out.Body.Text = r.expand(req.Body.Text, missing)
	if req.Headers != nil {
		out.Headers = make([]action.Header, len(req.Headers))
		for i, h := range req.Headers {
			out.Headers[i] = action.Header{Name: h.Name, Value: r.expand(h.Value, missing)}
		}
	}

	if len(missing) > 0 {
		names := slices.Sorted(maps.Keys(missing))
		return action.Request{}, fmt.Errorf("undefined variables: %s", strings.Join(names, ", "))
	}
	return out, nil
}

func (r *Renderer) expand(s string, missing map[string]bool) string {
	if !strings.Contains(s, "${[") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		value, ok := r.vars[name]
		if !ok {
			missing[name] = true
			return m
		}
		return value
	})
}
