package logging

import (
	"fmt"
	"log/slog"
	"time"
)

// TimeSpan measures a named interval and logs it when finished
type TimeSpan struct {
	logger *Logger
	start  time.Time
	debug  bool
	buf    *Messages
}

type finishOptions struct {
	color   Color
	bold    bool
	newline bool
}

// FinishOption customises how a span's closing line is rendered
type FinishOption func(*finishOptions)

func WithColor(c Color) FinishOption {
	return func(o *finishOptions) { o.color = c }
}

func WithBold() FinishOption {
	return func(o *finishOptions) { o.bold = true }
}

// WithNewline prints a blank separator line after the closing line
func WithNewline() FinishOption {
	return func(o *finishOptions) { o.newline = true }
}

// CreateTimeSpan logs msg and starts timing. Debug spans log at debug level.
// Each line logged by the span is also appended to buf.
func (l *Logger) CreateTimeSpan(msg string, debug bool, buf *Messages) *TimeSpan {
	ts := &TimeSpan{
		logger: l,
		start:  l.now(),
		debug:  debug,
		buf:    buf,
	}

	ts.log(msg)

	return ts
}

// Finish logs msg with the elapsed time and returns the elapsed time
func (ts *TimeSpan) Finish(msg string, opts ...FinishOption) time.Duration {
	var o finishOptions
	for _, opt := range opts {
		opt(&o)
	}

	elapsed := ts.logger.now().Sub(ts.start)

	line := ts.logger.Highlight(msg, o.color, o.bold) + " " + ts.logger.Dim("in "+FormatDuration(elapsed))
	ts.log(line, slog.Duration("elapsed", elapsed))

	if o.newline && !ts.debug {
		ts.logger.Blank()
	}

	return elapsed
}

func (ts *TimeSpan) log(line string, args ...any) {
	ts.buf.Append(line)

	if ts.debug {
		ts.logger.Debug(line, args...)
		return
	}

	ts.logger.Info(line, args...)
}

// FormatDuration renders d the way build output reports it
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d μs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return fmt.Sprintf("%d m %d s", int(d.Minutes()), int(d.Seconds())%60)
	}
}
