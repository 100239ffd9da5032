// Package runner drives builds from start to finish for the CLI. Source
// transformation is a copy pipeline: sources under src_dir are staged into
// www_dir, scripts and styles under build/<fs_namespace>.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Norgate-AV/incr/internal/build"
	"github.com/Norgate-AV/incr/internal/collections"
	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/dist"
	"github.com/Norgate-AV/incr/internal/task"
	"github.com/Norgate-AV/incr/internal/validate"
	"github.com/Norgate-AV/incr/internal/watch"
)

// cachePrefix namespaces source entries in the persistent cache
const cachePrefix = "src:"

// Validator starts the deferred type validation of a build
type Validator interface {
	Start(b *build.Build) *task.Task
}

// Runner runs builds against a compiler context
type Runner struct {
	ctx       *compiler.Context
	writer    *build.OutputWriter
	validator Validator
	opts      []build.Option

	mu         sync.Mutex
	background []*task.Task
}

// New creates a runner with the default distribution generator, collection
// writer and validator
func New(ctx *compiler.Context, opts ...build.Option) *Runner {
	return &Runner{
		ctx: ctx,
		writer: &build.OutputWriter{
			Distributions: dist.NewGenerator(),
			Collections:   collections.NewWriter(),
		},
		validator: validate.NewValidator(),
		opts:      opts,
	}
}

// Run performs one build. report is nil for a from-scratch build.
func (r *Runner) Run(ctx context.Context, report *watch.Report) (*build.Results, error) {
	b := build.New(r.ctx, report, r.opts...)

	if r.validator != nil {
		r.validator.Start(b)
	}

	r.transpile(b)
	if b.ShouldAbort() {
		return b.Abort()
	}

	if err := b.ValidateTypesBuild(ctx); err != nil {
		return b.Abort()
	}

	if b.ShouldAbort() {
		return b.Abort()
	}

	if pending := r.writer.WriteBuildFiles(ctx, b); pending != nil {
		r.mu.Lock()
		r.background = append(r.background, pending)
		r.mu.Unlock()
	}

	if b.ShouldAbort() {
		return b.Abort()
	}

	return b.Finish()
}

// Wait blocks until every background commit started by a build has finished
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	pending := r.background
	r.background = nil
	r.mu.Unlock()

	for _, t := range pending {
		if err := t.Wait(ctx); err != nil && ctx.Err() != nil {
			return err
		}
	}

	return nil
}

// transpile stages the outputs of b's sources. A full build processes every
// file under the source directory; a rebuild only the changed ones.
func (r *Runner) transpile(b *build.Build) {
	cfg := b.Config()
	span := b.CreateTimeSpan("transpile started", false)

	sources, deleted, err := r.sources(b)
	if err != nil {
		b.CatchError(err)
		span.Finish("transpile failed")
		return
	}

	for _, src := range deleted {
		if !b.IsActiveBuild() {
			return
		}

		if err := r.ctx.FS.Remove(outputPath(cfg, src)); err != nil {
			b.CatchError(err)
		}
	}

	r.stageDirs(b)

	groups := make(map[string][]string)
	scripts := 0

	for _, src := range sources {
		// a newer build owns the output from here on
		if !b.IsActiveBuild() {
			return
		}

		kind, err := r.stage(b, src)
		if err != nil {
			b.CatchError(err)
			continue
		}

		switch kind {
		case kindScript:
			scripts++
			b.TranspileBuildCount++
			if name := collectionName(cfg, src); name != "" {
				base := cfg.Basename(src)
				groups[name] = append(groups[name], strings.TrimSuffix(base, filepath.Ext(base)))
			}
		case kindStyle:
			b.StyleBuildCount++
		case kindIndex:
			b.IndexBuildCount++
		case kindAsset:
			b.HasCopyChanges = true
		}
	}

	if scripts > 0 {
		b.BundleBuildCount++
	}

	if b.RequiresFullBuild {
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			b.Collections = append(b.Collections, build.Collection{Name: name, Components: groups[name]})
		}
	}

	span.Finish(fmt.Sprintf("transpile finished, files: %d", len(sources)))
}

// stageDirs mirrors added and deleted source directories into the output
// tree. Removal drops anything already staged under the directory.
func (r *Runner) stageDirs(b *build.Build) {
	cfg := b.Config()

	for _, dir := range b.DirsDeleted {
		if !within(dir, cfg.SrcDir) {
			continue
		}

		for _, out := range outputDirs(cfg, dir) {
			if err := r.ctx.FS.RemoveAll(out); err != nil {
				b.CatchError(err)
			}
		}
	}

	for _, dir := range b.DirsAdded {
		if !within(dir, cfg.SrcDir) {
			continue
		}

		if out := assetDir(cfg, dir); out != "" {
			if err := r.ctx.FS.MkdirAll(out); err != nil {
				b.CatchError(err)
			}
		}
	}
}

// sources returns the files to stage and the deleted sources whose output
// must be removed
func (r *Runner) sources(b *build.Build) ([]string, []string, error) {
	cfg := b.Config()

	if b.RequiresFullBuild {
		files, err := r.ctx.FS.List(cfg.SrcDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list sources: %w", err)
		}

		return files, nil, nil
	}

	var files []string
	for _, f := range append(clone(b.FilesUpdated), b.FilesAdded...) {
		if within(f, cfg.SrcDir) {
			files = append(files, f)
		}
	}

	var deleted []string
	for _, f := range b.FilesDeleted {
		if within(f, cfg.SrcDir) {
			deleted = append(deleted, f)
		}
	}

	return files, deleted, nil
}

type kind int

const (
	kindAsset kind = iota
	kindScript
	kindStyle
	kindIndex
)

func kindOf(cfg *config.Config, path string) kind {
	ext := watch.Extension(path)

	switch {
	case path == cfg.SrcIndexHTML:
		return kindIndex
	case contains(watch.ScriptExtensions, ext):
		return kindScript
	case contains(watch.StyleExtensions, ext):
		return kindStyle
	default:
		return kindAsset
	}
}

// stage copies src to its output path unless the cache shows it unchanged
func (r *Runner) stage(b *build.Build, src string) (kind, error) {
	cfg := b.Config()
	k := kindOf(cfg, src)

	data, err := r.ctx.FS.ReadFile(src)
	if err != nil {
		return k, fmt.Errorf("failed to read source %s: %w", src, err)
	}

	key := cachePrefix + src
	entry, err := r.ctx.Cache.Get(key)
	if err != nil {
		return k, err
	}

	out := outputPath(cfg, src)

	if entry.Matches(data) {
		if _, err := r.ctx.FS.ReadFile(out); err == nil {
			return k, nil
		}
	}

	if err := r.ctx.FS.WriteFile(out, data); err != nil {
		return k, err
	}

	r.ctx.Cache.Put(key, data)

	return k, nil
}

// outputPath maps a source path to the path it is staged at
func outputPath(cfg *config.Config, src string) string {
	if src == cfg.SrcIndexHTML {
		return filepath.Join(cfg.WWWDir, "index.html")
	}

	rel, err := filepath.Rel(cfg.SrcDir, src)
	if err != nil {
		rel = filepath.Base(src)
	}

	switch kindOf(cfg, src) {
	case kindScript, kindStyle:
		return filepath.Join(namespaceDir(cfg), rel)
	default:
		return filepath.Join(cfg.WWWDir, rel)
	}
}

// outputDirs returns the directories holding the outputs of the source
// directory dir
func outputDirs(cfg *config.Config, dir string) []string {
	rel, err := filepath.Rel(cfg.SrcDir, dir)
	if err != nil {
		return nil
	}

	dirs := []string{filepath.Join(namespaceDir(cfg), rel)}
	if out := assetDir(cfg, dir); out != "" {
		dirs = append(dirs, out)
	}

	return dirs
}

// assetDir is the www directory mirroring the source directory dir, or ""
// when it would overlap the namespaced build directory
func assetDir(cfg *config.Config, dir string) string {
	rel, err := filepath.Rel(cfg.SrcDir, dir)
	if err != nil {
		return ""
	}

	out := filepath.Join(cfg.WWWDir, rel)
	ns := namespaceDir(cfg)
	if out == ns || within(out, ns) || within(ns, out) {
		return ""
	}

	return out
}

func namespaceDir(cfg *config.Config) string {
	return filepath.Join(cfg.WWWDir, "build", cfg.FsNamespace)
}

// collectionName is the top level directory of a script under the source
// directory, or "" for scripts at the root
func collectionName(cfg *config.Config, src string) string {
	rel, err := filepath.Rel(cfg.SrcDir, src)
	if err != nil {
		return ""
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}

	return parts[0]
}

func within(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

func clone(s []string) []string {
	return append([]string{}, s...)
}
