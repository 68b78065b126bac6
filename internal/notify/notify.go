// Package notify shows action toasts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"jcr/internal/action"
)

// Terminal writes one styled line per toast.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	success lipgloss.Style
	danger  lipgloss.Style
}

// NewTerminal returns a Terminal writing to w. Colors are used only when w
// is a terminal that supports them.
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:       w,
		success: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		danger:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

func (t *Terminal) Show(ctx context.Context, toast action.Toast) error {
	style, mark := t.danger, "✗"
	if toast.Color == action.ColorSuccess {
		style, mark = t.success, "✓"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%s %s\n", style.Render(mark), toast.Message)
	return err
}

// Log emits toasts as log records.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Show(ctx context.Context, toast action.Toast) error {
	level := slog.LevelInfo
	if toast.Color == action.ColorDanger {
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, toast.Message, "color", string(toast.Color), "icon", string(toast.Icon))
	return nil
}

// Multi shows each toast on every notifier.
type Multi []action.Notifier

func (m Multi) Show(ctx context.Context, toast action.Toast) error {
	var errs []error
	for _, n := range m {
		if err := n.Show(ctx, toast); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
