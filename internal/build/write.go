package build

import (
	"context"
	"errors"
	"fmt"

	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/task"
)

// DistributionGenerator produces the distribution copy of a build's output
type DistributionGenerator interface {
	Generate(cfg *config.Config, ctx *compiler.Context, b *Build) *task.Task
}

// CollectionWriter persists the collection manifest of a build
type CollectionWriter interface {
	WriteAppCollections(cfg *config.Config, ctx *compiler.Context, b *Build) error
}

// OutputWriter commits a build's staged output
type OutputWriter struct {
	Distributions DistributionGenerator
	Collections   CollectionWriter
}

// WriteBuildFiles commits the staged filesystem of an active build that has
// no errors. On a first build the distribution copy is waited for; on a
// rebuild it is left running, and the returned task commits the staging
// filesystem and the cache again once it completes. The returned task is nil
// when there is nothing left running.
//
// Failures are recorded as diagnostics on b and never returned.
func (w *OutputWriter) WriteBuildFiles(ctx context.Context, b *Build) *task.Task {
	if b.ShouldAbort() || !b.IsActiveBuild() {
		return nil
	}

	cctx := b.ctx
	cfg := b.cfg

	if w.Collections != nil {
		if err := w.Collections.WriteAppCollections(cfg, cctx, b); err != nil {
			b.CatchError(fmt.Errorf("failed to write collections: %w", err))
		}
	}

	span := b.CreateTimeSpan("writeBuildFiles started", true)

	totalFilesWrote := 0

	var distribution *task.Task
	func() {
		if w.Distributions != nil {
			distribution = w.Distributions.Generate(cfg, cctx, b)
		}

		if distribution != nil && !b.IsRebuild {
			// the first build waits on the distribution, rebuilds let it
			// finish whenever it does
			err := distribution.Wait(ctx)
			distribution = nil
			if err != nil {
				b.CatchError(fmt.Errorf("failed to generate distribution: %w", err))
				return
			}
		}

		res, err := cctx.FS.Commit()
		if err != nil {
			b.CatchError(fmt.Errorf("failed to commit build files: %w", err))
			return
		}

		b.FilesWritten = res.FilesWritten
		b.FilesDeleted = res.FilesDeleted
		b.DirsDeleted = res.DirsDeleted
		b.DirsAdded = res.DirsAdded
		totalFilesWrote = len(res.FilesWritten)

		if b.IsActiveBuild() {
			b.Debug("in-memory-fs: " + cctx.FS.MemoryStats())
			b.Debug("cache: " + cctx.Cache.MemoryStats())
			cctx.Recorder.AddFilesWritten(totalFilesWrote)
		} else {
			b.Debug("commit cache aborted, not active build")
		}
	}()

	elapsed := span.Finish(fmt.Sprintf("writeBuildFiles finished, files wrote: %d", totalFilesWrote))
	if b.IsActiveBuild() {
		cctx.Recorder.ObserveStageDuration("writeBuildFiles", elapsed)
	}

	if distribution == nil {
		return nil
	}

	return distribution.Then(func(err error) error {
		if err != nil {
			cctx.Logger.Warn("distribution failed", "build_id", b.ID, "error", err)
			cctx.Recorder.IncBackgroundCommit(false)
			return err
		}

		return commitBackground(cctx)
	})
}

// commitBackground flushes whatever the distribution staged after the build
// that started it returned
func commitBackground(cctx *compiler.Context) error {
	_, fsErr := cctx.FS.Commit()
	if fsErr != nil {
		fsErr = fmt.Errorf("failed to commit distribution files: %w", fsErr)
	}

	_, cacheErr := cctx.Cache.Commit()
	if cacheErr != nil {
		cacheErr = fmt.Errorf("failed to commit cache: %w", cacheErr)
	}

	err := errors.Join(fsErr, cacheErr)
	if err != nil {
		cctx.Logger.Warn("background commit failed", "error", err)
	}

	cctx.Recorder.IncBackgroundCommit(err == nil)

	return err
}
