package watch

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/events"
	"github.com/Norgate-AV/incr/internal/logging"
)

func newTestContext(t *testing.T, cfg *config.Config) (*compiler.Context, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	noColor := false
	logger := logging.New(&logging.Config{Level: slog.LevelDebug, Output: &buf, Colors: &noColor})

	return compiler.NewContext(cfg, nil, nil, logger), &buf
}

func TestRebuild_EmitsClassifiedReport(t *testing.T) {
	cfg := &config.Config{SrcIndexHTML: "/src/index.html"}
	ctx, out := newTestContext(t, cfg)

	var got []*Report
	ctx.Events.On(events.Build, func(payload any) {
		r, ok := payload.(*Report)
		require.True(t, ok)
		got = append(got, r)
	})

	r := &Report{FilesUpdated: []string{"/src/index.html", "/src/app.ts"}}
	Rebuild(ctx, r)

	require.Len(t, got, 1)
	assert.Same(t, r, got[0])
	assert.True(t, r.HasIndexHTMLChanges)
	assert.True(t, r.HasScriptChanges)
	assert.Contains(t, out.String(), "changed files: index.html, app.ts")
}

func TestRebuild_ReloadFailureKeepsConfig(t *testing.T) {
	cfg := &config.Config{
		FsNamespace: "before",
		ConfigFile:  filepath.Join(t.TempDir(), ".incr.yml"),
	}
	ctx, out := newTestContext(t, cfg)

	emitted := 0
	ctx.Events.On(events.Build, func(any) { emitted++ })

	Rebuild(ctx, &Report{ConfigUpdated: true})

	assert.Same(t, cfg, ctx.Config())
	assert.Equal(t, 1, emitted, "a failed reload still triggers a build")
	assert.Contains(t, out.String(), "config reload failed")
}

func TestRebuild_NoSummaryForEmptyReport(t *testing.T) {
	ctx, out := newTestContext(t, &config.Config{})

	Rebuild(ctx, &Report{})

	assert.NotContains(t, out.String(), "changed")
}
