// Package action implements the "Send (Strip Comments)" request action.
//
// The action renders a request, strips comments from its JSON body,
// optionally checks the body against a JSON Schema, sends it and reports the
// outcome as a toast. Rendering, sending and notification are collaborators
// supplied by the caller.
package action

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"jcr/pkg/jsonc"
)

const (
	// Label is the name the action is presented under.
	Label = "Send (Strip Comments)"

	// JSONBodyType is the only body type whose text is stripped.
	JSONBodyType = "application/json"
)

// Header is one request header. Order and duplicates are preserved.
type Header struct {
	Name  string
	Value string
}

type Body struct {
	Text string
}

// Request is an HTTP request as defined by the user, before or after
// rendering.
type Request struct {
	ID       string
	Method   string
	URL      string
	Headers  []Header
	BodyType string
	Body     Body
	// Schema is an optional JSON Schema the stripped body must satisfy.
	Schema string
}

type Response struct {
	Status       int
	StatusReason string
	Elapsed      time.Duration
}

type Color string

const (
	ColorSuccess Color = "success"
	ColorDanger  Color = "danger"
)

type Icon string

const (
	IconCheckCircle   Icon = "check_circle"
	IconAlertTriangle Icon = "alert_triangle"
)

type Toast struct {
	Message string
	Color   Color
	Icon    Icon
}

// Renderer substitutes template variables in a request.
type Renderer interface {
	Render(ctx context.Context, req Request) (Request, error)
}

// Sender transmits a rendered request.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Notifier shows a toast to the user.
type Notifier interface {
	Show(ctx context.Context, toast Toast) error
}

// SendStripComments is the render, strip, send, notify pipeline.
type SendStripComments struct {
	renderer Renderer
	sender   Sender
	notifier Notifier
	logger   *slog.Logger
}

func New(renderer Renderer, sender Sender, notifier Notifier) *SendStripComments {
	return &SendStripComments{
		renderer: renderer,
		sender:   sender,
		notifier: notifier,
		logger:   slog.Default(),
	}
}

// WithLogger returns a copy of the action that logs to logger.
func (a *SendStripComments) WithLogger(logger *slog.Logger) *SendStripComments {
	c := *a
	c.logger = logger
	return &c
}

// Run executes the action once for req. A failure to render, validate or
// send is reported with a failure toast and returned. Toast errors are
// logged only.
func (a *SendStripComments) Run(ctx context.Context, req Request) (Response, error) {
	runID, err := NewRunID()
	if err != nil {
		return Response{}, fmt.Errorf("failed to create run id: %w", err)
	}
	logger := a.logger.With("run_id", runID, "request_id", req.ID)

	resp, err := a.send(ctx, logger, req)
	if err != nil {
		logger.Error("Request failed", "error", err)
		a.show(ctx, logger, FailureToast(err))
		return Response{}, err
	}

	logger.Info("Request sent", "status", resp.Status, "elapsed", resp.Elapsed)
	a.show(ctx, logger, StatusToast(resp))
	return resp, nil
}

func (a *SendStripComments) send(ctx context.Context, logger *slog.Logger, req Request) (Response, error) {
	rendered, err := a.renderer.Render(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("render: %w", err)
	}

	if ShouldProcessBody(rendered) {
		stripped := jsonc.StripComments(rendered.Body.Text)
		if stripped != rendered.Body.Text {
			logger.Debug("Stripped comments from body", "before", len(rendered.Body.Text), "after", len(stripped))
			rendered.Body.Text = stripped
		}
	}

	if rendered.Schema != "" {
		if err := ValidateBody(rendered.Schema, rendered.Body.Text); err != nil {
			return Response{}, err
		}
	}

	resp, err := a.sender.Send(ctx, rendered)
	if err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}
	return resp, nil
}

func (a *SendStripComments) show(ctx context.Context, logger *slog.Logger, toast Toast) {
	if err := a.notifier.Show(ctx, toast); err != nil {
		logger.Error("Failed to show toast", "message", toast.Message, "error", err)
	}
}

// ShouldProcessBody reports whether req has body text of exactly the
// application/json body type.
func ShouldProcessBody(req Request) bool {
	return req.Body.Text != "" && req.BodyType == JSONBodyType
}

// StatusToast describes a completed response. 2xx statuses are successes.
func StatusToast(resp Response) Toast {
	reason := resp.StatusReason
	if reason == "" {
		reason = strconv.Itoa(resp.Status)
	}

	toast := Toast{
		Message: fmt.Sprintf("%d %s", resp.Status, reason),
		Color:   ColorDanger,
		Icon:    IconAlertTriangle,
	}
	if resp.Status >= 200 && resp.Status < 300 {
		toast.Color = ColorSuccess
		toast.Icon = IconCheckCircle
	}
	return toast
}

// FailureToast describes a request that could not be sent.
func FailureToast(err error) Toast {
	return Toast{
		Message: "Failed to send request: " + err.Error(),
		Color:   ColorDanger,
		Icon:    IconAlertTriangle,
	}
}

// NewRunID returns a new lexicographically sortable run identifier.
func NewRunID() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
