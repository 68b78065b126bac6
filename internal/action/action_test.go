package action

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(ctx context.Context, req Request) (Request, error) {
	if f.err != nil {
		return Request{}, f.err
	}
	req.URL = strings.ReplaceAll(req.URL, "${[ host ]}", "example.com")
	return req, nil
}

type fakeSender struct {
	resp Response
	err  error
	sent []Request
}

func (f *fakeSender) Send(ctx context.Context, req Request) (Response, error) {
	f.sent = append(f.sent, req)
	return f.resp, f.err
}

type fakeNotifier struct {
	err    error
	toasts []Toast
}

func (f *fakeNotifier) Show(ctx context.Context, toast Toast) error {
	f.toasts = append(f.toasts, toast)
	return f.err
}

func TestRun(t *testing.T) {
	const commented = "{\n  // the user\n  \"name\": \"a//b\" /* inline */\n}"
	const stripped = "{\n  \n  \"name\": \"a//b\" \n}"

	tests := []struct {
		name         string
		req          Request
		renderErr    error
		resp         Response
		sendErr      error
		expectedBody string
		expectedURL  string
		expectSent   bool
		expectErr    string
		expected     Toast
	}{
		{
			name: "json body is stripped",
			req: Request{
				Method:   "POST",
				URL:      "https://${[ host ]}/users",
				BodyType: "application/json",
				Body:     Body{Text: commented},
			},
			resp:         Response{Status: 201, StatusReason: "Created"},
			expectedBody: stripped,
			expectedURL:  "https://example.com/users",
			expectSent:   true,
			expected:     Toast{Message: "201 Created", Color: ColorSuccess, Icon: IconCheckCircle},
		},
		{
			name: "json body without comments is unchanged",
			req: Request{
				Method:   "POST",
				URL:      "https://example.com",
				BodyType: "application/json",
				Body:     Body{Text: `{"a": 1}`},
			},
			resp:         Response{Status: 200, StatusReason: "OK"},
			expectedBody: `{"a": 1}`,
			expectedURL:  "https://example.com",
			expectSent:   true,
			expected:     Toast{Message: "200 OK", Color: ColorSuccess, Icon: IconCheckCircle},
		},
		{
			name: "other body types are untouched",
			req: Request{
				Method:   "POST",
				URL:      "https://example.com",
				BodyType: "text/plain",
				Body:     Body{Text: commented},
			},
			resp:         Response{Status: 200, StatusReason: "OK"},
			expectedBody: commented,
			expectedURL:  "https://example.com",
			expectSent:   true,
			expected:     Toast{Message: "200 OK", Color: ColorSuccess, Icon: IconCheckCircle},
		},
		{
			name: "json with parameters is untouched",
			req: Request{
				Method:   "POST",
				URL:      "https://example.com",
				BodyType: "application/json; charset=utf-8",
				Body:     Body{Text: commented},
			},
			resp:         Response{Status: 200, StatusReason: "OK"},
			expectedBody: commented,
			expectedURL:  "https://example.com",
			expectSent:   true,
			expected:     Toast{Message: "200 OK", Color: ColorSuccess, Icon: IconCheckCircle},
		},
		{
			name: "error status",
			req: Request{
				Method: "GET",
				URL:    "https://example.com/missing",
			},
			resp:        Response{Status: 404, StatusReason: "Not Found"},
			expectedURL: "https://example.com/missing",
			expectSent:  true,
			expected:    Toast{Message: "404 Not Found", Color: ColorDanger, Icon: IconAlertTriangle},
		},
		{
			name: "missing reason falls back to status",
			req: Request{
				Method: "GET",
				URL:    "https://example.com",
			},
			resp:        Response{Status: 299},
			expectedURL: "https://example.com",
			expectSent:  true,
			expected:    Toast{Message: "299 299", Color: ColorSuccess, Icon: IconCheckCircle},
		},
		{
			name: "redirect is not a success",
			req: Request{
				Method: "GET",
				URL:    "https://example.com",
			},
			resp:        Response{Status: 302, StatusReason: "Found"},
			expectedURL: "https://example.com",
			expectSent:  true,
			expected:    Toast{Message: "302 Found", Color: ColorDanger, Icon: IconAlertTriangle},
		},
		{
			name:      "render failure",
			req:       Request{Method: "GET", URL: "https://${[ host ]}"},
			renderErr: errors.New("unknown variable token"),
			expectErr: "render: unknown variable token",
			expected: Toast{
				Message: "Failed to send request: render: unknown variable token",
				Color:   ColorDanger,
				Icon:    IconAlertTriangle,
			},
		},
		{
			name:      "send failure",
			req:       Request{Method: "GET", URL: "https://example.com"},
			sendErr:   errors.New("connection refused"),
			expectErr: "send: connection refused",
			expected: Toast{
				Message: "Failed to send request: send: connection refused",
				Color:   ColorDanger,
				Icon:    IconAlertTriangle,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &fakeRenderer{err: tt.renderErr}
			sender := &fakeSender{resp: tt.resp, err: tt.sendErr}
			notifier := &fakeNotifier{}

			resp, err := New(renderer, sender, notifier).Run(context.Background(), tt.req)

			if tt.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q but got none", tt.expectErr)
				}
				if err.Error() != tt.expectErr {
					t.Errorf("expected error %q, got %q", tt.expectErr, err.Error())
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if resp != tt.resp {
					t.Errorf("expected response %+v, got %+v", tt.resp, resp)
				}
			}

			if tt.expectSent {
				if len(sender.sent) != 1 {
					t.Fatalf("expected 1 request sent, got %d", len(sender.sent))
				}
				sent := sender.sent[0]
				if diff := cmp.Diff(tt.expectedBody, sent.Body.Text); diff != "" {
					t.Errorf("sent body mismatch (-want +got):\n%s", diff)
				}
				if sent.URL != tt.expectedURL {
					t.Errorf("expected URL %q, got %q", tt.expectedURL, sent.URL)
				}
			} else if len(sender.sent) != 0 {
				t.Errorf("expected nothing sent, got %d requests", len(sender.sent))
			}

			if diff := cmp.Diff([]Toast{tt.expected}, notifier.toasts); diff != "" {
				t.Errorf("toasts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunDoesNotModifyCallerRequest(t *testing.T) {
	headers := []Header{{Name: "Accept", Value: "application/json"}}
	req := Request{
		Method:   "POST",
		URL:      "https://example.com",
		Headers:  headers,
		BodyType: JSONBodyType,
		Body:     Body{Text: `{"a": 1} // c`},
	}

	sender := &fakeSender{resp: Response{Status: 204, StatusReason: "No Content"}}
	_, err := New(&fakeRenderer{}, sender, &fakeNotifier{}).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Body.Text != `{"a": 1} // c` {
		t.Errorf("caller's request body changed to %q", req.Body.Text)
	}
	if got := sender.sent[0].Body.Text; got != `{"a": 1} ` {
		t.Errorf("expected stripped body, got %q", got)
	}
}

func TestRunNotifierFailureIsNotReturned(t *testing.T) {
	sender := &fakeSender{resp: Response{Status: 200, StatusReason: "OK"}}
	notifier := &fakeNotifier{err: errors.New("display closed")}

	_, err := New(&fakeRenderer{}, sender, notifier).Run(context.Background(), Request{Method: "GET", URL: "https://example.com"})
	if err != nil {
		t.Errorf("expected toast failure to be swallowed, got %v", err)
	}
	if len(notifier.toasts) != 1 {
		t.Errorf("expected one toast attempt, got %d", len(notifier.toasts))
	}
}

func TestRunSchemaValidation(t *testing.T) {
	const schema = `{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string"}, "age": {"type": "integer"}}
	}`

	tests := []struct {
		name       string
		body       string
		expectSent bool
		errPrefix  string
	}{
		{
			name:       "valid after stripping",
			body:       "{\"name\": \"x\", // who\n \"age\": 3}",
			expectSent: true,
		},
		{
			name:      "missing property",
			body:      `{"age": 3} /* no name */`,
			errPrefix: "body does not match schema",
		},
		{
			name:      "not json",
			body:      `{"name": }`,
			errPrefix: "body is not valid JSON",
		},
		{
			name:      "trailing data",
			body:      `{"name": "x"} {"name": "y"}`,
			errPrefix: "body is not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{resp: Response{Status: 200, StatusReason: "OK"}}
			notifier := &fakeNotifier{}
			req := Request{
				Method:   "POST",
				URL:      "https://example.com",
				BodyType: JSONBodyType,
				Body:     Body{Text: tt.body},
				Schema:   schema,
			}

			_, err := New(&fakeRenderer{}, sender, notifier).Run(context.Background(), req)

			if tt.expectSent {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(sender.sent) != 1 {
					t.Errorf("expected request to be sent")
				}
				return
			}

			if err == nil || !strings.HasPrefix(err.Error(), tt.errPrefix) {
				t.Fatalf("expected error starting with %q, got %v", tt.errPrefix, err)
			}
			if len(sender.sent) != 0 {
				t.Error("expected request not to be sent")
			}
			if len(notifier.toasts) != 1 || notifier.toasts[0].Color != ColorDanger {
				t.Errorf("expected a failure toast, got %+v", notifier.toasts)
			}
		})
	}
}

func TestValidateBodyInvalidSchema(t *testing.T) {
	err := ValidateBody(`{"type": `, `{}`)
	if err == nil || !strings.HasPrefix(err.Error(), "invalid schema") {
		t.Errorf("expected invalid schema error, got %v", err)
	}
}

func TestShouldProcessBody(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		expected bool
	}{
		{"json", Request{BodyType: "application/json", Body: Body{Text: "{}"}}, true},
		{"empty body", Request{BodyType: "application/json"}, false},
		{"no body type", Request{Body: Body{Text: "{}"}}, false},
		{"form", Request{BodyType: "application/x-www-form-urlencoded", Body: Body{Text: "a=1"}}, false},
		{"graphql", Request{BodyType: "graphql", Body: Body{Text: "{}"}}, false},
		{"uppercase", Request{BodyType: "Application/JSON", Body: Body{Text: "{}"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldProcessBody(tt.req); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewRunID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := ulid.ParseStrict(id); err != nil {
			t.Fatalf("invalid ULID %q: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate run id %q", id)
		}
		seen[id] = true
	}
}
