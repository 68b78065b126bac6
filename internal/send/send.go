// Package send transmits rendered requests over HTTP.
package send

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"jcr/internal/action"
)

// maxDrain bounds how much of a response body is read so the connection can
// be reused.
const maxDrain = 1 << 20

type Sender struct {
	client    *http.Client
	userAgent string
}

// New returns a Sender whose requests time out after timeout and which keeps
// cookies between requests.
func New(timeout time.Duration, version string) (*Sender, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Sender{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: "jcr/" + version,
	}, nil
}

// Send performs req and reports the response status. The response body is
// discarded.
func (s *Sender) Send(ctx context.Context, req action.Request) (action.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body.Text != "" {
		body = strings.NewReader(req.Body.Text)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), req.URL, body)
	if err != nil {
		return action.Response{}, fmt.Errorf("invalid request: %w", err)
	}

	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}
	if body != nil && req.BodyType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", req.BodyType)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return action.Response{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain)); err != nil {
		slog.Debug("Failed to drain response body", "url", req.URL, "error", err)
	}

	return action.Response{
		Status:       resp.StatusCode,
		StatusReason: statusReason(resp),
		Elapsed:      time.Since(start),
	}, nil
}

// statusReason returns the reason phrase from the status line, or the
// standard text for the code when the server sent none.
func statusReason(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
