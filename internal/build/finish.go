package build

import (
	"time"

	"github.com/Norgate-AV/incr/internal/diag"
	"github.com/Norgate-AV/incr/internal/events"
	"github.com/Norgate-AV/incr/internal/logging"
	"github.com/Norgate-AV/incr/internal/metrics"
)

// Results is the outcome of a finalized build
type Results struct {
	BuildID      int64             `json:"buildId"`
	Timestamp    string            `json:"timestamp"`
	Duration     time.Duration     `json:"duration"`
	IsRebuild    bool              `json:"isRebuild"`
	Aborted      bool              `json:"aborted"`
	HasError     bool              `json:"hasError"`
	Stale        bool              `json:"stale"`
	Diagnostics  []diag.Diagnostic `json:"diagnostics"`
	FilesChanged []string          `json:"filesChanged"`
	FilesWritten []string          `json:"filesWritten"`
	FilesDeleted []string          `json:"filesDeleted"`
	DirsAdded    []string          `json:"dirsAdded"`
	DirsDeleted  []string          `json:"dirsDeleted"`
	Messages     []string          `json:"messages"`
}

// DefaultFinisher closes the whole-build span and updates the compiler
// context. A stale build only has its results collected.
func DefaultFinisher(b *Build, aborted bool) *Results {
	diagnostics := b.Diagnostics()

	res := &Results{
		BuildID:      b.ID,
		Timestamp:    b.Timestamp,
		Duration:     b.now().Sub(b.StartTime),
		IsRebuild:    b.IsRebuild,
		Aborted:      aborted,
		HasError:     diag.HasError(diagnostics),
		Stale:        !b.IsActiveBuild(),
		Diagnostics:  diagnostics,
		FilesChanged: clone(b.FilesChanged),
		FilesWritten: clone(b.FilesWritten),
		FilesDeleted: clone(b.FilesDeleted),
		DirsAdded:    clone(b.DirsAdded),
		DirsDeleted:  clone(b.DirsDeleted),
	}

	rec := b.ctx.Recorder

	if res.Stale {
		b.Debug("results collected, not active build")
		rec.IncBuildOutcome(metrics.OutcomeStale)
		res.Messages = b.Messages()
		return res
	}

	failed := aborted || res.HasError
	if failed {
		b.ctx.SetLastBuildHadError(true)
	} else {
		b.ctx.SetHasSuccessfulBuild(true)
		b.ctx.SetLastBuildHadError(false)
	}

	for _, d := range diagnostics {
		b.logDiagnostic(d)
	}

	if failed {
		b.span.Finish("build failed", logging.WithColor(logging.ColorRed), logging.WithBold(), logging.WithNewline())
	} else {
		b.span.Finish("build finished", logging.WithColor(logging.ColorGreen), logging.WithBold(), logging.WithNewline())
	}

	switch {
	case res.HasError:
		rec.IncBuildOutcome(metrics.OutcomeFailed)
	case aborted:
		rec.IncBuildOutcome(metrics.OutcomeAborted)
	default:
		rec.IncBuildOutcome(metrics.OutcomeSuccess)
	}
	rec.ObserveBuildDuration(res.Duration)

	res.Messages = b.Messages()
	b.ctx.Events.Emit(events.BuildFinish, res)

	return res
}
