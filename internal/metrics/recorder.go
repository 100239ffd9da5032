// Package metrics records build telemetry.
//
// Components receive a Recorder through the compiler context. NoopRecorder is
// the default; watch mode swaps in a PrometheusRecorder when a metrics address
// is configured.
package metrics

import "time"

// BuildOutcome enumerates final build states for counters.
type BuildOutcome string

const (
	OutcomeSuccess BuildOutcome = "success"
	OutcomeFailed  BuildOutcome = "failed"
	OutcomeAborted BuildOutcome = "aborted"
	OutcomeStale   BuildOutcome = "stale"
)

// Recorder defines observability hooks for builds and their stages.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcome)
	AddFilesWritten(n int)
	SetActiveBuild(id int64)
	IncBackgroundCommit(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)               {}
func (NoopRecorder) AddFilesWritten(int)                        {}
func (NoopRecorder) SetActiveBuild(int64)                       {}
func (NoopRecorder) IncBackgroundCommit(bool)                   {}
