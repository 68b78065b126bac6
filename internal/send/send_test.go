package send

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jcr/internal/action"
)

func TestSend(t *testing.T) {
	var gotMethod, gotBody, gotContentType, gotUserAgent string
	var gotAccept []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod = r.Method
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Values("Accept")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	sender, err := New(5*time.Second, "1.0.0")
	if err != nil {
		t.Fatalf("failed to create sender: %v", err)
	}

	resp, err := sender.Send(context.Background(), action.Request{
		Method: "post",
		URL:    server.URL + "/users",
		Headers: []action.Header{
			{Name: "Accept", Value: "application/json"},
			{Name: "Accept", Value: "text/plain"},
		},
		BodyType: action.JSONBodyType,
		Body:     action.Body{Text: `{"name": "x"}`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != http.StatusCreated || resp.StatusReason != "Created" {
		t.Errorf("unexpected response %+v", resp)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotBody != `{"name": "x"}` {
		t.Errorf("unexpected body %q", gotBody)
	}
	if gotContentType != action.JSONBodyType {
		t.Errorf("expected body type as Content-Type, got %q", gotContentType)
	}
	if gotUserAgent != "jcr/1.0.0" {
		t.Errorf("unexpected User-Agent %q", gotUserAgent)
	}
	if len(gotAccept) != 2 {
		t.Errorf("expected both Accept headers, got %v", gotAccept)
	}
}

func TestSendExplicitContentTypeWins(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	sender, _ := New(5*time.Second, "test")
	_, err := sender.Send(context.Background(), action.Request{
		Method:   "POST",
		URL:      server.URL,
		Headers:  []action.Header{{Name: "Content-Type", Value: "application/vnd.api+json"}},
		BodyType: action.JSONBodyType,
		Body:     action.Body{Text: "{}"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotContentType != "application/vnd.api+json" {
		t.Errorf("expected explicit Content-Type, got %q", gotContentType)
	}
}

func TestSendKeepsCookies(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
			return
		}
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
	}))
	defer server.Close()

	sender, _ := New(5*time.Second, "test")
	for _, path := range []string{"/login", "/me"} {
		if _, err := sender.Send(context.Background(), action.Request{URL: server.URL + path}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if gotCookie != "s1" {
		t.Errorf("expected session cookie to be sent back, got %q", gotCookie)
	}
}

func TestSendErrors(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	tests := []struct {
		name    string
		timeout time.Duration
		req     action.Request
	}{
		{"invalid url", time.Second, action.Request{URL: "://nope"}},
		{"invalid method", time.Second, action.Request{Method: "BAD METHOD", URL: "http://example.com"}},
		{"connection refused", time.Second, action.Request{URL: closedURL}},
		{"timeout", 50 * time.Millisecond, action.Request{URL: slow.URL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, _ := New(tt.timeout, "test")
			if _, err := sender.Send(context.Background(), tt.req); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func TestStatusReason(t *testing.T) {
	tests := []struct {
		status   string
		code     int
		expected string
	}{
		{"200 OK", 200, "OK"},
		{"418 I'm a teapot", 418, "I'm a teapot"},
		{"200 Everything Fine", 200, "Everything Fine"},
		{"204", 204, "No Content"},
		{"599", 599, ""},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := statusReason(&http.Response{Status: tt.status, StatusCode: tt.code})
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
