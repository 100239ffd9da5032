// Package collections writes the collection manifest consumed by downstream
// tooling.
package collections

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/Norgate-AV/incr/internal/build"
	"github.com/Norgate-AV/incr/internal/compiler"
	"github.com/Norgate-AV/incr/internal/config"
)

// ManifestName is the file name of the manifest under the namespace build dir
const ManifestName = "collections.json"

// Manifest is the serialized form of a build's collections
type Manifest struct {
	Namespace   string             `json:"namespace"`
	Collections []build.Collection `json:"collections"`
}

// Writer stages the collection manifest of a build
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// ManifestPath returns where the manifest is written for cfg
func ManifestPath(cfg *config.Config) string {
	return filepath.Join(cfg.WWWDir, "build", cfg.FsNamespace, ManifestName)
}

// WriteAppCollections stages the manifest for b. Builds without collections
// leave any existing manifest alone.
func (w *Writer) WriteAppCollections(cfg *config.Config, ctx *compiler.Context, b *build.Build) error {
	if len(b.Collections) == 0 {
		return nil
	}

	m := Manifest{
		Namespace:   cfg.FsNamespace,
		Collections: make([]build.Collection, len(b.Collections)),
	}

	for i, c := range b.Collections {
		components := append([]string{}, c.Components...)
		sort.Strings(components)
		m.Collections[i] = build.Collection{Name: c.Name, Components: components}
	}

	sort.Slice(m.Collections, func(i, j int) bool {
		return m.Collections[i].Name < m.Collections[j].Name
	})

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode collection manifest: %w", err)
	}

	path := ManifestPath(cfg)
	if err := ctx.FS.WriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write collection manifest %s: %w", path, err)
	}

	return nil
}
