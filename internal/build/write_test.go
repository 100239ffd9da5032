package build

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/stagefs"
	"github.com/Norgate-AV/incr/internal/task"
	"github.com/Norgate-AV/incr/internal/watch"
)

// blockingDist generates a distribution that completes when release is closed
type blockingDist struct {
	mu      sync.Mutex
	release chan struct{}
	err     error
	calls   int
	last    *task.Task
}

func newBlockingDist() *blockingDist {
	return &blockingDist{release: make(chan struct{})}
}

func (d *blockingDist) Generate(_ *config.Config, _ *compiler.Context, _ *Build) *task.Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.last = task.Go(func() error {
		<-d.release
		return d.err
	})

	return d.last
}

type recordingCollections struct {
	calls int
	err   error
}

func (c *recordingCollections) WriteAppCollections(*config.Config, *compiler.Context, *Build) error {
	c.calls++
	return c.err
}

func TestWriteBuildFiles_FirstBuildWaitsOnDistribution(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fs.result = &stagefs.CommitResult{
		FilesWritten: []string{"/www/app.js", "/www/app.css"},
		FilesDeleted: []string{"/www/old.js"},
		DirsAdded:    []string{"/www/build"},
		DirsDeleted:  []string{"/www/stale"},
	}

	dist := newBlockingDist()
	coll := &recordingCollections{}
	w := &OutputWriter{Distributions: dist, Collections: coll}

	b := New(env.ctx, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(dist.release)
	}()

	pending := w.WriteBuildFiles(context.Background(), b)

	assert.Nil(t, pending)
	assert.True(t, dist.last.Finished(), "first build should wait for the distribution")
	assert.Equal(t, 1, coll.calls)
	assert.Equal(t, 1, env.fs.commitCount())
	assert.Equal(t, 0, env.cache.commitCount())

	assert.Equal(t, []string{"/www/app.js", "/www/app.css"}, b.FilesWritten)
	assert.Equal(t, []string{"/www/old.js"}, b.FilesDeleted)
	assert.Equal(t, []string{"/www/build"}, b.DirsAdded)
	assert.Equal(t, []string{"/www/stale"}, b.DirsDeleted)

	out := env.out.String()
	assert.Contains(t, out, "writeBuildFiles finished, files wrote: 2")
	assert.Contains(t, out, "in-memory-fs: fs stats")
	assert.Contains(t, out, "cache: cache stats")
	assert.Empty(t, b.Diagnostics())
}

func TestWriteBuildFiles_RebuildDoesNotWait(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ctx.SetHasSuccessfulBuild(true)

	dist := newBlockingDist()
	w := &OutputWriter{Distributions: dist}

	b := New(env.ctx, &watch.Report{})

	pending := w.WriteBuildFiles(context.Background(), b)
	require.NotNil(t, pending)

	assert.False(t, dist.last.Finished())
	assert.Equal(t, 1, env.fs.commitCount())
	assert.Equal(t, 0, env.cache.commitCount())

	close(dist.release)
	require.NoError(t, pending.Wait(context.Background()))

	assert.Equal(t, 2, env.fs.commitCount(), "distribution output is committed again")
	assert.Equal(t, 1, env.cache.commitCount())
}

func TestWriteBuildFiles_BackgroundCommitOutlivesStaleBuild(t *testing.T) {
	env := newTestEnv(t, nil)

	dist := newBlockingDist()
	w := &OutputWriter{Distributions: dist}

	b := New(env.ctx, &watch.Report{})
	pending := w.WriteBuildFiles(context.Background(), b)
	require.NotNil(t, pending)

	New(env.ctx, nil)
	close(dist.release)

	require.NoError(t, pending.Wait(context.Background()))
	assert.Equal(t, 2, env.fs.commitCount())
	assert.Equal(t, 1, env.cache.commitCount())
}

func TestWriteBuildFiles_FailedDistributionSkipsBackgroundCommit(t *testing.T) {
	env := newTestEnv(t, nil)

	dist := newBlockingDist()
	dist.err = errors.New("disk full")
	close(dist.release)
	w := &OutputWriter{Distributions: dist}

	b := New(env.ctx, &watch.Report{})
	pending := w.WriteBuildFiles(context.Background(), b)
	require.NotNil(t, pending)

	assert.Error(t, pending.Wait(context.Background()))
	assert.Equal(t, 1, env.fs.commitCount())
	assert.Equal(t, 0, env.cache.commitCount())
}

func TestWriteBuildFiles_CommitFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fs.err = errors.New("permission denied")

	w := &OutputWriter{}
	b := New(env.ctx, nil)

	assert.NotPanics(t, func() {
		assert.Nil(t, w.WriteBuildFiles(context.Background(), b))
	})

	diagnostics := b.Diagnostics()
	require.Len(t, diagnostics, 1)
	assert.Contains(t, diagnostics[0].Message, "permission denied")
	assert.Contains(t, env.out.String(), "writeBuildFiles finished, files wrote: 0")
	assert.Empty(t, b.FilesWritten)
}

func TestWriteBuildFiles_FirstBuildDistributionFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	dist := newBlockingDist()
	dist.err = errors.New("copy failed")
	close(dist.release)
	w := &OutputWriter{Distributions: dist}

	b := New(env.ctx, nil)
	assert.Nil(t, w.WriteBuildFiles(context.Background(), b))

	require.Len(t, b.Diagnostics(), 1)
	assert.Contains(t, b.Diagnostics()[0].Message, "copy failed")
	assert.Equal(t, 0, env.fs.commitCount())
	assert.Contains(t, env.out.String(), "files wrote: 0")
}

func TestWriteBuildFiles_CollectionFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t, nil)

	w := &OutputWriter{Collections: &recordingCollections{err: errors.New("bad manifest")}}
	b := New(env.ctx, nil)

	w.WriteBuildFiles(context.Background(), b)

	require.Len(t, b.Diagnostics(), 1)
	assert.Contains(t, b.Diagnostics()[0].Message, "bad manifest")
	assert.Equal(t, 1, env.fs.commitCount())
}

func TestWriteBuildFiles_Skipped(t *testing.T) {
	t.Run("build with errors", func(t *testing.T) {
		env := newTestEnv(t, nil)
		dist := newBlockingDist()
		coll := &recordingCollections{}
		w := &OutputWriter{Distributions: dist, Collections: coll}

		b := New(env.ctx, nil)
		b.CatchError(errors.New("compile failed"))

		assert.Nil(t, w.WriteBuildFiles(context.Background(), b))
		assert.Equal(t, 0, coll.calls)
		assert.Equal(t, 0, dist.calls)
		assert.Equal(t, 0, env.fs.commitCount())
		assert.True(t, env.ctx.LastBuildHadError())
	})

	t.Run("stale build", func(t *testing.T) {
		env := newTestEnv(t, nil)
		dist := newBlockingDist()
		w := &OutputWriter{Distributions: dist}

		b := New(env.ctx, nil)
		New(env.ctx, nil)

		assert.Nil(t, w.WriteBuildFiles(context.Background(), b))
		assert.Equal(t, 0, dist.calls)
		assert.Equal(t, 0, env.fs.commitCount())
		assert.NotContains(t, env.out.String(), "writeBuildFiles")
	})
}

// staleOnCommitFS starts a newer build while the flush is in progress
type staleOnCommitFS struct {
	fakeFS
	ctx *compiler.Context
}

func (f *staleOnCommitFS) Commit() (*stagefs.CommitResult, error) {
	f.ctx.StartBuild()
	return &stagefs.CommitResult{FilesWritten: []string{"/www/a.js"}}, nil
}

func TestWriteBuildFiles_StaleDuringCommit(t *testing.T) {
	env := newTestEnv(t, nil)
	fs := &staleOnCommitFS{}
	env.ctx.FS = fs
	fs.ctx = env.ctx

	w := &OutputWriter{}
	b := New(env.ctx, nil)

	w.WriteBuildFiles(context.Background(), b)

	out := env.out.String()
	assert.Contains(t, out, "commit cache aborted, not active build")
	assert.NotContains(t, out, "in-memory-fs:")
	assert.Contains(t, out, "writeBuildFiles finished, files wrote: 1", "always-run span still closes")
	assert.Equal(t, []string{"/www/a.js"}, b.FilesWritten)
}
