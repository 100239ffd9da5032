// Package logging wraps log/slog with the helpers the build engine needs:
// colour highlighting and timed spans that feed a build's message buffer.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/mattn/go-isatty"
)

// Config holds logger configuration
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
	Output io.Writer
	// Colors forces colour output on or off. Nil detects a terminal.
	Colors *bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger is a structured logger with colour helpers and timed spans
type Logger struct {
	slog   *slog.Logger
	out    io.Writer
	format string
	colors bool
	now    func() time.Time
}

// New creates a new logger
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	colors := isTerminal(out)
	if cfg.Colors != nil {
		colors = *cfg.Colors
	}

	return &Logger{
		slog:   slog.New(handler),
		out:    out,
		format: cfg.Format,
		colors: colors,
		now:    time.Now,
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return New(&Config{Output: io.Discard, Level: slog.LevelError + 1})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// With returns a logger that adds args to every record
func (l *Logger) With(args ...any) *Logger {
	clone := *l
	clone.slog = l.slog.With(args...)
	return &clone
}

func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Enabled reports whether records at level are emitted
func (l *Logger) Enabled(level slog.Level) bool {
	return l.slog.Enabled(context.Background(), level)
}

// Color names understood by Highlight
type Color string

const (
	ColorNone    Color = ""
	ColorCyan    Color = "cyan"
	ColorGreen   Color = "green"
	ColorRed     Color = "red"
	ColorYellow  Color = "yellow"
	ColorMagenta Color = "magenta"
	ColorDim     Color = "dim"
)

var ansi = map[Color]string{
	ColorCyan:    "6",
	ColorGreen:   "2",
	ColorRed:     "1",
	ColorYellow:  "3",
	ColorMagenta: "5",
	ColorDim:     "8",
}

// Highlight styles s with color and optional bold. Plain text is returned
// when colours are disabled.
func (l *Logger) Highlight(s string, color Color, bold bool) string {
	if !l.colors || (color == ColorNone && !bold) {
		return s
	}

	style := lipgloss.NewStyle().Bold(bold)
	if code, ok := ansi[color]; ok {
		style = style.Foreground(lipgloss.Color(code))
	}

	return style.Render(s)
}

func (l *Logger) Cyan(s string) string {
	return l.Highlight(s, ColorCyan, false)
}

func (l *Logger) Dim(s string) string {
	return l.Highlight(s, ColorDim, false)
}

// Blank writes an empty separator line to text output
func (l *Logger) Blank() {
	if l.format == "json" {
		return
	}
	fmt.Fprintln(l.out)
}
