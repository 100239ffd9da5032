package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration     *prom.HistogramVec
	buildDuration     prom.Histogram
	buildOutcome      *prom.CounterVec
	filesWritten      prom.Counter
	activeBuild       prom.Gauge
	backgroundCommits *prom.CounterVec
}

// NewPrometheusRecorder constructs the build metrics and registers them with reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "incr",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "incr",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "incr",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		filesWritten: prom.NewCounter(prom.CounterOpts{
			Namespace: "incr",
			Name:      "files_written_total",
			Help:      "Files committed to the output directory",
		}),
		activeBuild: prom.NewGauge(prom.GaugeOpts{
			Namespace: "incr",
			Name:      "active_build_id",
			Help:      "Id of the most recently started build",
		}),
		backgroundCommits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "incr",
			Name:      "background_commits_total",
			Help:      "Commits performed after a detached distribution task completed",
		}, []string{"result"}),
	}

	reg.MustRegister(
		pr.stageDuration,
		pr.buildDuration,
		pr.buildOutcome,
		pr.filesWritten,
		pr.activeBuild,
		pr.backgroundCommits,
	)

	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcome) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddFilesWritten(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.filesWritten.Add(float64(n))
}

func (p *PrometheusRecorder) SetActiveBuild(id int64) {
	if p == nil {
		return
	}
	p.activeBuild.Set(float64(id))
}

func (p *PrometheusRecorder) IncBackgroundCommit(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.backgroundCommits.WithLabelValues(res).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
