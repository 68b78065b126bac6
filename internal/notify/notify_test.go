package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"jcr/internal/action"
)

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	terminal := NewTerminal(&buf)

	toasts := []action.Toast{
		{Message: "200 OK", Color: action.ColorSuccess, Icon: action.IconCheckCircle},
		{Message: "500 Internal Server Error", Color: action.ColorDanger, Icon: action.IconAlertTriangle},
	}
	for _, toast := range toasts {
		if err := terminal.Show(context.Background(), toast); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	expected := "✓ 200 OK\n✗ 500 Internal Server Error\n"
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewLog(logger).Show(context.Background(), action.Toast{
		Message: "Failed to send request: boom",
		Color:   action.ColorDanger,
		Icon:    action.IconAlertTriangle,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"level=ERROR", `msg="Failed to send request: boom"`, "icon=alert_triangle"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got %q", want, out)
		}
	}
}

type failingNotifier struct {
	err   error
	calls int
}

func (f *failingNotifier) Show(ctx context.Context, toast action.Toast) error {
	f.calls++
	return f.err
}

func TestMulti(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a := &failingNotifier{err: errA}
	ok := &failingNotifier{}
	b := &failingNotifier{err: errB}

	err := Multi{a, ok, b}.Show(context.Background(), action.Toast{Message: "x"})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected joined errors, got %v", err)
	}
	if a.calls != 1 || ok.calls != 1 || b.calls != 1 {
		t.Error("expected every notifier to be called once")
	}

	if err := (Multi{ok}).Show(context.Background(), action.Toast{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
