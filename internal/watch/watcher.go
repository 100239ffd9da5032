package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Norgate-AV/incr/internal/logging"
)

// DefaultDelay is the quiet period that closes a batch of events
const DefaultDelay = 100 * time.Millisecond

// FileFilter determines if a path should be watched
type FileFilter func(path string) bool

// Watcher watches a source tree and batches filesystem events into reports
type Watcher struct {
	fsw        *fsnotify.Watcher
	root       string
	configFile string
	delay      time.Duration
	filters    []FileFilter
	logger     *logging.Logger
	dirs       map[string]struct{}
}

// NewWatcher creates a watcher for the tree rooted at root
func NewWatcher(root string, delay time.Duration, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if delay <= 0 {
		delay = DefaultDelay
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Watcher{
		fsw:     fsw,
		root:    filepath.Clean(root),
		delay:   delay,
		filters: []FileFilter{NoGitFilter},
		logger:  logger,
		dirs:    make(map[string]struct{}),
	}, nil
}

// WatchConfigFile reports changes to path as config updates. The file's
// directory is watched as well.
func (w *Watcher) WatchConfigFile(path string) error {
	if path == "" {
		return nil
	}

	w.configFile = filepath.Clean(path)

	return w.fsw.Add(filepath.Dir(w.configFile))
}

// AddFilter adds a file filter
func (w *Watcher) AddFilter(filter FileFilter) {
	w.filters = append(w.filters, filter)
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// addRecursive adds a directory and all subdirectories to watch
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if !w.accept(path) {
			return filepath.SkipDir
		}

		w.dirs[path] = struct{}{}

		return w.fsw.Add(path)
	})
}

func (w *Watcher) accept(path string) bool {
	if path == w.configFile {
		return true
	}

	for _, filter := range w.filters {
		if !filter(path) {
			return false
		}
	}

	return true
}

// Run watches until ctx is done, calling onReport with one report per batch.
// onReport runs on the watcher goroutine.
func (w *Watcher) Run(ctx context.Context, onReport func(*Report)) error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	pending := newBatch()
	timer := time.NewTimer(w.delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if w.handleEvent(pending, event) {
				timer.Reset(w.delay)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			// Log error but continue watching
			w.logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			if pending.empty() {
				continue
			}

			r := pending.report(w.configFile)
			pending = newBatch()
			onReport(r)
		}
	}
}

// handleEvent folds event into b and reports whether it was kept
func (w *Watcher) handleEvent(b *batch, event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)

	if w.configFile != "" && filepath.Dir(path) == filepath.Dir(w.configFile) &&
		path != w.configFile && !w.within(path) {
		// sibling of the config file outside the source tree
		return false
	}

	if !w.accept(path) {
		return false
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", path, "error", err)
			}
			b.add(path, dirAdded)
			return true
		}
		b.add(path, fileAdded)

	case event.Has(fsnotify.Write):
		b.add(path, fileUpdated)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, ok := w.dirs[path]; ok {
			delete(w.dirs, path)
			b.add(path, dirDeleted)
			return true
		}
		b.add(path, fileDeleted)

	default:
		// chmod only
		return false
	}

	return true
}

func (w *Watcher) within(path string) bool {
	return path == w.root || strings.HasPrefix(path, w.root+string(filepath.Separator))
}

// NoGitFilter rejects paths inside .git directories
func NoGitFilter(path string) bool {
	return !strings.Contains(filepath.ToSlash(path), "/.git/") && filepath.Base(path) != ".git"
}

// ExcludeDirsFilter rejects paths inside any of dirs
func ExcludeDirsFilter(dirs ...string) FileFilter {
	cleaned := make([]string, len(dirs))
	for i, d := range dirs {
		cleaned[i] = filepath.Clean(d)
	}

	return func(path string) bool {
		for _, d := range cleaned {
			if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
				return false
			}
		}

		return true
	}
}
