// Package compiler holds the state of a compiler session that outlives any
// single build.
package compiler

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Norgate-AV/incr/internal/cache"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/events"
	"github.com/Norgate-AV/incr/internal/logging"
	"github.com/Norgate-AV/incr/internal/metrics"
	"github.com/Norgate-AV/incr/internal/stagefs"
)

// StagingFS buffers output writes until they are committed to storage
type StagingFS interface {
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
	List(dir string) ([]string, error)
	MkdirAll(dir string) error
	RemoveAll(dir string) error
	Pending() bool
	Commit() (*stagefs.CommitResult, error)
	MemoryStats() string
}

// Cache is the persistent cache shared by every build of a session
type Cache interface {
	Get(key string) (*cache.Entry, error)
	Put(key string, data []byte) *cache.Entry
	Commit() (int, error)
	MemoryStats() string
}

// Context is the process-wide compiler context. Every build increments the
// active build id; a build whose id no longer matches is stale.
type Context struct {
	SessionID string
	Events    *events.Emitter
	FS        StagingFS
	Cache     Cache
	Logger    *logging.Logger
	Recorder  metrics.Recorder

	config             atomic.Pointer[config.Config]
	activeBuildID      atomic.Int64
	hasSuccessfulBuild atomic.Bool
	lastBuildHadError  atomic.Bool
}

// NewContext creates a compiler context for a new session
func NewContext(cfg *config.Config, fs StagingFS, cache Cache, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.Discard()
	}

	id := uuid.NewString()

	c := &Context{
		SessionID: id,
		Events:    events.New(),
		FS:        fs,
		Cache:     cache,
		Logger:    logger.With("session", id[:8]),
		Recorder:  metrics.NoopRecorder{},
	}
	c.config.Store(cfg)

	return c
}

// WithRecorder sets the metrics recorder and returns the context
func (c *Context) WithRecorder(r metrics.Recorder) *Context {
	if r != nil {
		c.Recorder = r
	}

	return c
}

// Config returns the current build configuration
func (c *Context) Config() *config.Config {
	return c.config.Load()
}

// ReloadConfig re-reads the configuration from disk. On failure the current
// configuration stays in effect.
func (c *Context) ReloadConfig() error {
	cfg, err := c.Config().Reload()
	if err != nil {
		return err
	}

	c.config.Store(cfg)

	return nil
}

// StartBuild increments the active build id and returns the new value
func (c *Context) StartBuild() int64 {
	id := c.activeBuildID.Add(1)
	c.Recorder.SetActiveBuild(id)

	return id
}

// ActiveBuildID returns the id of the most recently started build
func (c *Context) ActiveBuildID() int64 {
	return c.activeBuildID.Load()
}

// HasSuccessfulBuild reports whether any build of this session has succeeded
func (c *Context) HasSuccessfulBuild() bool {
	return c.hasSuccessfulBuild.Load()
}

func (c *Context) SetHasSuccessfulBuild(v bool) {
	c.hasSuccessfulBuild.Store(v)
}

// LastBuildHadError reports whether the previous build ended with errors
func (c *Context) LastBuildHadError() bool {
	return c.lastBuildHadError.Load()
}

func (c *Context) SetLastBuildHadError(v bool) {
	c.lastBuildHadError.Store(v)
}
