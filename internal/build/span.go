package build

import (
	"time"

	"github.com/Norgate-AV/incr/internal/logging"
)

// Span is a timed interval opened by a build
type Span interface {
	Finish(msg string, opts ...logging.FinishOption) time.Duration
}

type noopSpan struct{}

func (noopSpan) Finish(string, ...logging.FinishOption) time.Duration { return 0 }

type buildSpan struct {
	build     *Build
	ts        *logging.TimeSpan
	alwaysRun bool
}

// CreateTimeSpan opens a timed span. Spans of a stale or finished build do
// nothing unless alwaysRun is set; alwaysRun spans log at debug level with the
// build id prefix. Staleness is checked again when the span finishes.
func (b *Build) CreateTimeSpan(msg string, alwaysRun bool) Span {
	if !b.spanEnabled(alwaysRun) {
		return noopSpan{}
	}

	if alwaysRun {
		msg = b.prefix() + " " + msg
	}

	s := &buildSpan{
		build:     b,
		ts:        b.logger.CreateTimeSpan(msg, alwaysRun, b.messages),
		alwaysRun: alwaysRun,
	}

	if !alwaysRun {
		b.emitLog()
	}

	return s
}

func (b *Build) spanEnabled(alwaysRun bool) bool {
	return (b.IsActiveBuild() && !b.hasFinished.Load()) || alwaysRun
}

func (s *buildSpan) Finish(msg string, opts ...logging.FinishOption) time.Duration {
	b := s.build

	// the build may have gone stale while the span was open
	if !b.spanEnabled(s.alwaysRun) {
		return 0
	}

	if s.alwaysRun {
		msg = b.prefix() + " " + msg
	}

	elapsed := s.ts.Finish(msg, opts...)

	if !s.alwaysRun {
		b.emitLog()
	}

	return elapsed
}
