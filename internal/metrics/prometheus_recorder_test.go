package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("write_build_files", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome(OutcomeSuccess)
	pr.IncBuildOutcome(OutcomeSuccess)
	pr.IncBuildOutcome(OutcomeFailed)
	pr.AddFilesWritten(3)
	pr.AddFilesWritten(0)
	pr.SetActiveBuild(7)
	pr.IncBackgroundCommit(true)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.buildOutcome.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.buildOutcome.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.filesWritten))
	assert.Equal(t, 7.0, testutil.ToFloat64(pr.activeBuild))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.backgroundCommits.WithLabelValues("success")))
}

func TestPrometheusRecorder_NilReceiver(t *testing.T) {
	var pr *PrometheusRecorder

	assert.NotPanics(t, func() {
		pr.ObserveStageDuration("commit", time.Second)
		pr.IncBuildOutcome(OutcomeAborted)
		pr.AddFilesWritten(1)
		pr.SetActiveBuild(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(OutcomeStale)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "incr_build_outcomes_total")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}

	assert.NotPanics(t, func() {
		r.ObserveStageDuration("x", time.Millisecond)
		r.ObserveBuildDuration(time.Millisecond)
		r.IncBuildOutcome(OutcomeSuccess)
		r.AddFilesWritten(1)
		r.SetActiveBuild(1)
		r.IncBackgroundCommit(false)
	})
}
