// Package build tracks the lifecycle of a single build attempt and commits its
// output. A build whose id no longer matches the compiler context's active id
// is stale: it keeps running but its logging, events and telemetry are dropped.
// Diagnostics are always recorded.
package build

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/diag"
	"github.com/Norgate-AV/incr/internal/events"
	"github.com/Norgate-AV/incr/internal/logging"
	"github.com/Norgate-AV/incr/internal/task"
	"github.com/Norgate-AV/incr/internal/watch"
)

// TimestampFormat is the layout of Build.Timestamp
const TimestampFormat = "2006-01-02T15:04:05"

// ErrAlreadyFinished is returned when Abort or Finish is called on a build
// that has already been finalized
var ErrAlreadyFinished = errors.New("build already finished")

// Collection is a group of components whose metadata is written to the
// collection manifest
type Collection struct {
	Name       string   `json:"name"`
	Components []string `json:"components"`
}

// Finisher collects the results of a build. It is called exactly once per
// build, by Abort or Finish.
type Finisher func(b *Build, aborted bool) *Results

// Option configures a build
type Option func(*Build)

// WithFinisher replaces the default finisher
func WithFinisher(f Finisher) Option {
	return func(b *Build) {
		if f != nil {
			b.finisher = f
		}
	}
}

// WithClock sets the time source used for the build timestamp and duration
func WithClock(now func() time.Time) Option {
	return func(b *Build) {
		if now != nil {
			b.now = now
		}
	}
}

// Build is the record of one build attempt
type Build struct {
	ID                int64
	Timestamp         string
	StartTime         time.Time
	IsRebuild         bool
	RequiresFullBuild bool

	FilesChanged      []string
	FilesUpdated      []string
	FilesAdded        []string
	FilesDeleted      []string
	FilesWritten      []string
	DirsAdded         []string
	DirsDeleted       []string
	ScriptsAdded      []string
	ScriptsDeleted    []string
	ChangedExtensions []string

	HasCopyChanges      bool
	HasScriptChanges    bool
	HasStyleChanges     bool
	HasIndexHTMLChanges bool

	TranspileBuildCount int
	BundleBuildCount    int
	StyleBuildCount     int
	IndexBuildCount     int

	Collections []Collection

	ctx      *compiler.Context
	cfg      *config.Config
	logger   *logging.Logger
	messages *logging.Messages
	span     Span
	finisher Finisher
	now      func() time.Time

	mu            sync.Mutex
	diagnostics   []diag.Diagnostic
	validateTypes *task.Task
	results       *Results

	finalizing  atomic.Bool
	hasFinished atomic.Bool
}

// New starts a build. report is nil for a from-scratch build and set for a
// build triggered by the watcher.
func New(ctx *compiler.Context, report *watch.Report, opts ...Option) *Build {
	b := &Build{
		HasScriptChanges: true,
		HasStyleChanges:  true,
		ctx:              ctx,
		cfg:              ctx.Config(),
		messages:         &logging.Messages{},
		finisher:         DefaultFinisher,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.StartTime = b.now()
	b.Timestamp = b.StartTime.UTC().Format(TimestampFormat)

	// do a full build if there is no watcher, the config changed or
	// nothing has ever built successfully
	b.RequiresFullBuild = report == nil || report.ConfigUpdated || !ctx.HasSuccessfulBuild()
	b.IsRebuild = report != nil

	b.ID = ctx.StartBuild()
	b.logger = ctx.Logger.With("build_id", b.ID)

	b.Debug("start build, " + b.Timestamp)

	mode := "prod"
	if b.cfg.DevMode {
		mode = "dev"
	}

	kind := "build"
	if b.IsRebuild {
		kind = "rebuild"
	}

	b.span = b.CreateTimeSpan(fmt.Sprintf("%s, %s, %s mode, started", kind, b.cfg.FsNamespace, mode), false)

	if report != nil {
		b.ScriptsAdded = clone(report.ScriptsAdded)
		b.ScriptsDeleted = clone(report.ScriptsDeleted)
		b.ChangedExtensions = clone(report.ChangedExtensions)
		b.HasCopyChanges = report.HasCopyChanges
		b.HasScriptChanges = report.HasScriptChanges
		b.HasStyleChanges = report.HasStyleChanges
		b.HasIndexHTMLChanges = report.HasIndexHTMLChanges

		b.FilesChanged = clone(report.FilesChanged)
		b.FilesUpdated = clone(report.FilesUpdated)
		b.FilesAdded = clone(report.FilesAdded)
		b.FilesDeleted = clone(report.FilesDeleted)
		b.DirsAdded = clone(report.DirsAdded)
		b.DirsDeleted = clone(report.DirsDeleted)
	}

	return b
}

func clone(s []string) []string {
	return append([]string{}, s...)
}

// Config returns the configuration the build was started with
func (b *Build) Config() *config.Config {
	return b.cfg
}

// Context returns the compiler context the build belongs to
func (b *Build) Context() *compiler.Context {
	return b.ctx
}

// Messages returns the lines logged by the build's spans so far
func (b *Build) Messages() []string {
	return b.messages.Snapshot()
}

// IsActiveBuild reports whether no newer build has started since this one
func (b *Build) IsActiveBuild() bool {
	return b.ID == b.ctx.ActiveBuildID()
}

// HasFinished reports whether Abort or Finish has completed
func (b *Build) HasFinished() bool {
	return b.hasFinished.Load()
}

func (b *Build) prefix() string {
	return b.logger.Cyan(fmt.Sprintf("[%d]", b.ID))
}

// Debug logs msg at debug level, prefixed with the build id
func (b *Build) Debug(msg string) {
	b.logger.Debug(b.prefix() + " " + msg)
}

// AddDiagnostic records d on the build. Stale builds still record. A
// diagnostic arriving after the build finished, such as a type error from
// validation left running in watch mode, is logged and emitted directly.
func (b *Build) AddDiagnostic(d diag.Diagnostic) {
	b.mu.Lock()
	b.diagnostics = append(b.diagnostics, d)
	b.mu.Unlock()

	if b.hasFinished.Load() && b.IsActiveBuild() {
		b.logDiagnostic(d)
		b.messages.Append(d.String())
		b.emitLog()
	}
}

func (b *Build) logDiagnostic(d diag.Diagnostic) {
	switch d.Level {
	case diag.LevelError:
		b.logger.Error(d.String())
	case diag.LevelWarn:
		b.logger.Warn(d.String())
	default:
		b.logger.Info(d.String())
	}
}

// CatchError records err as an error diagnostic. A nil err is ignored.
func (b *Build) CatchError(err error) {
	if err == nil {
		return
	}

	b.AddDiagnostic(diag.FromError(err))
}

// Diagnostics returns a copy of the diagnostics recorded so far
func (b *Build) Diagnostics() []diag.Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]diag.Diagnostic, len(b.diagnostics))
	copy(out, b.diagnostics)

	return out
}

// ShouldAbort reports whether any error diagnostic has been recorded. When it
// has, the compiler context remembers that the last build had an error.
func (b *Build) ShouldAbort() bool {
	b.mu.Lock()
	hasError := diag.HasError(b.diagnostics)
	b.mu.Unlock()

	if hasError {
		b.ctx.SetLastBuildHadError(true)
		return true
	}

	return false
}

// SetValidateTypes registers pending type validation work for the build
func (b *Build) SetValidateTypes(t *task.Task) {
	b.mu.Lock()
	b.validateTypes = t
	b.mu.Unlock()
}

// ValidateTypesBuild joins pending type validation. It only blocks outside of
// watch mode, and never for an aborted or stale build.
func (b *Build) ValidateTypesBuild(ctx context.Context) error {
	if b.ShouldAbort() || !b.IsActiveBuild() {
		return nil
	}

	b.mu.Lock()
	pending := b.validateTypes
	b.mu.Unlock()

	if pending == nil {
		return nil
	}

	if b.cfg.Watch {
		return nil
	}

	b.Debug("build, non-watch, waiting on validateTypes")

	if err := pending.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}

	b.Debug("build, non-watch, finished waiting on validateTypes")

	b.mu.Lock()
	if b.validateTypes == pending {
		b.validateTypes = nil
	}
	b.mu.Unlock()

	return nil
}

// Abort finalizes a failed build
func (b *Build) Abort() (*Results, error) {
	return b.finalize(true)
}

// Finish finalizes a successful build
func (b *Build) Finish() (*Results, error) {
	return b.finalize(false)
}

func (b *Build) finalize(aborted bool) (*Results, error) {
	if !b.finalizing.CompareAndSwap(false, true) {
		return nil, ErrAlreadyFinished
	}

	res := b.finisher(b, aborted)

	b.mu.Lock()
	b.results = res
	b.mu.Unlock()

	b.hasFinished.Store(true)

	return res, nil
}

// Results returns the results of a finalized build, or nil
func (b *Build) Results() *Results {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.results
}

func (b *Build) emitLog() {
	b.ctx.Events.Emit(events.BuildLog, events.BuildLogPayload{
		BuildID:  b.ID,
		Messages: b.messages.Snapshot(),
	})
}
