// Package watch turns filesystem changes reported by the watcher into the
// change report that drives a rebuild.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ScriptExtensions are the extensions of files that go through the script pipeline
var ScriptExtensions = []string{"ts", "tsx", "js", "jsx"}

// StyleExtensions are the extensions of files that go through the style pipeline
var StyleExtensions = []string{"css", "scss", "pcss", "styl", "stylus", "less"}

// maxFilePrint is the most changed file names a summary lists in full
const maxFilePrint = 5

// Report describes what changed on disk since the last build
type Report struct {
	// Raw watcher input
	FilesUpdated  []string
	FilesAdded    []string
	FilesDeleted  []string
	DirsAdded     []string
	DirsDeleted   []string
	ConfigUpdated bool

	// HasCopyChanges is set by the watcher when a copied asset changed
	HasCopyChanges bool

	// Derived by Classify
	FilesChanged        []string
	ScriptsAdded        []string
	ScriptsDeleted      []string
	ChangedExtensions   []string
	HasScriptChanges    bool
	HasStyleChanges     bool
	HasIndexHTMLChanges bool
}

// Extension returns the lowercase extension of path without the dot, or ""
func Extension(path string) string {
	ext := filepath.Ext(filepath.Base(path))
	if ext == "" {
		return ""
	}

	return strings.ToLower(ext[1:])
}

func isScript(path string) bool {
	return contains(ScriptExtensions, Extension(path))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

// Classify fills in the derived fields of r. srcIndexHTML is the configured
// source index markup file.
func Classify(r *Report, srcIndexHTML string) {
	// files changed include updated, added and deleted, first occurrence wins
	seen := make(map[string]struct{})
	r.FilesChanged = make([]string, 0, len(r.FilesUpdated)+len(r.FilesAdded)+len(r.FilesDeleted))
	for _, group := range [][]string{r.FilesUpdated, r.FilesAdded, r.FilesDeleted} {
		for _, f := range group {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			r.FilesChanged = append(r.FilesChanged, f)
		}
	}

	r.ScriptsAdded = scriptBasenames(r.FilesAdded)
	r.ScriptsDeleted = scriptBasenames(r.FilesDeleted)

	exts := make(map[string]struct{})
	for _, f := range r.FilesChanged {
		if ext := Extension(f); ext != "" {
			exts[ext] = struct{}{}
		}
	}

	r.ChangedExtensions = make([]string, 0, len(exts))
	for ext := range exts {
		r.ChangedExtensions = append(r.ChangedExtensions, ext)
	}
	sort.Strings(r.ChangedExtensions)

	r.HasScriptChanges = false
	r.HasStyleChanges = false
	for _, ext := range r.ChangedExtensions {
		r.HasScriptChanges = r.HasScriptChanges || contains(ScriptExtensions, ext)
		r.HasStyleChanges = r.HasStyleChanges || contains(StyleExtensions, ext)
	}

	// the configured index file may be named something other than index.html,
	// and an index.html in any directory counts too
	r.HasIndexHTMLChanges = false
	for _, f := range r.FilesChanged {
		if (srcIndexHTML != "" && f == srcIndexHTML) || strings.EqualFold(filepath.Base(f), "index.html") {
			r.HasIndexHTMLChanges = true
			break
		}
	}
}

func scriptBasenames(paths []string) []string {
	out := []string{}
	for _, p := range paths {
		if isScript(p) {
			out = append(out, filepath.Base(p))
		}
	}

	return out
}

func basenames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}

	return strings.Join(names, ", ")
}

// Summary returns a one-line description of the report, or "" when there is
// nothing worth reporting
func Summary(r *Report) string {
	changed := r.FilesChanged
	total := len(changed)

	switch {
	case total > maxFilePrint:
		trimmed := changed[:maxFilePrint-1]
		others := total - len(trimmed)
		return fmt.Sprintf("changed files: %s, +%d %s", basenames(trimmed), others, plural(others, "other"))

	case total > 1:
		return "changed files: " + basenames(changed)

	case total == 1:
		return "changed file: " + basenames(changed)

	case len(r.DirsAdded) > 1:
		return "added directories: " + basenames(r.DirsAdded)

	case len(r.DirsAdded) == 1:
		return "added directory: " + basenames(r.DirsAdded)

	case len(r.DirsDeleted) > 1:
		return "deleted directories: " + basenames(r.DirsDeleted)

	case len(r.DirsDeleted) == 1:
		return "deleted directory: " + basenames(r.DirsDeleted)
	}

	return ""
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}

	return word + "s"
}
