// Package dist generates the distribution copy of the committed www output.
package dist

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/incr/internal/build"
	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
	"github.com/Norgate-AV/incr/internal/task"
)

// cachePrefix namespaces distribution entries in the persistent cache
const cachePrefix = "dist:"

// Generator mirrors the www directory into the dist directory through the
// staging filesystem. Files whose content matches the cached copy are skipped.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate starts copying in the background. It returns nil when distribution
// is disabled or the build is no longer active.
func (g *Generator) Generate(cfg *config.Config, ctx *compiler.Context, b *build.Build) *task.Task {
	if !cfg.GenerateDistribution || !b.IsActiveBuild() {
		return nil
	}

	return task.Go(func() error {
		copied, removed, err := g.copy(cfg, ctx, b)
		if err != nil {
			return err
		}

		if b.IsActiveBuild() {
			b.Debug(fmt.Sprintf("distribution, files copied: %d, removed: %d", copied, removed))
		}

		return nil
	})
}

func (g *Generator) copy(cfg *config.Config, ctx *compiler.Context, b *build.Build) (int, int, error) {
	sources, err := ctx.FS.List(cfg.WWWDir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list %s: %w", cfg.WWWDir, err)
	}

	wanted := make(map[string]struct{}, len(sources))
	copied := 0

	for _, src := range sources {
		// nothing a stale build writes may land after a newer build's output
		if !b.IsActiveBuild() {
			return copied, 0, nil
		}

		if within(src, cfg.DistDir) {
			continue
		}

		rel, err := filepath.Rel(cfg.WWWDir, src)
		if err != nil {
			return copied, 0, fmt.Errorf("failed to resolve %s: %w", src, err)
		}

		target := filepath.Join(cfg.DistDir, rel)
		wanted[target] = struct{}{}

		data, err := ctx.FS.ReadFile(src)
		if err != nil {
			return copied, 0, fmt.Errorf("failed to read %s: %w", src, err)
		}

		key := cachePrefix + filepath.ToSlash(rel)
		entry, err := ctx.Cache.Get(key)
		if err != nil {
			return copied, 0, err
		}

		if entry.Matches(data) {
			if existing, err := ctx.FS.ReadFile(target); err == nil && bytes.Equal(existing, data) {
				continue
			}
		}

		if err := ctx.FS.WriteFile(target, data); err != nil {
			return copied, 0, fmt.Errorf("failed to write %s: %w", target, err)
		}

		ctx.Cache.Put(key, data)
		copied++
	}

	existing, err := ctx.FS.List(cfg.DistDir)
	if err != nil {
		return copied, 0, fmt.Errorf("failed to list %s: %w", cfg.DistDir, err)
	}

	removed := 0
	for _, path := range existing {
		if _, ok := wanted[path]; ok {
			continue
		}

		if !b.IsActiveBuild() {
			break
		}

		if err := ctx.FS.Remove(path); err != nil {
			return copied, removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
	}

	return copied, removed, nil
}

func within(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
