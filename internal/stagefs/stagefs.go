// Package stagefs buffers filesystem operations in memory and flushes them to
// durable storage on Commit.
//
// Writes, directory creates and removals are staged against an in-memory
// afero layer. Readers see the staged view: pending writes shadow the disk and
// pending deletes hide it. Commit applies the queued operations in a fixed
// order (mkdirs, writes, deletes, rmdirs) and reports what actually changed
// on disk. A write whose content matches the durable file is not counted.
package stagefs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// CommitResult lists the operations a commit applied to disk
type CommitResult struct {
	FilesWritten []string
	FilesDeleted []string
	DirsAdded    []string
	DirsDeleted  []string
}

// FS is a staging filesystem in front of a durable afero.Fs
type FS struct {
	disk afero.Fs
	mem  afero.Fs

	// mu guards the pending sets and the cache accounting
	mu      sync.Mutex
	writes  map[string]struct{}
	deletes map[string]struct{}
	mkdirs  map[string]struct{}
	rmdirs  map[string]struct{}
	cached  map[string]int64

	// commitMu serializes commits. Readers hold it shared so they never see
	// a commit half applied.
	commitMu sync.RWMutex
}

// New creates a staging filesystem that commits to disk
func New(disk afero.Fs) *FS {
	return &FS{
		disk:    disk,
		mem:     afero.NewMemMapFs(),
		writes:  make(map[string]struct{}),
		deletes: make(map[string]struct{}),
		mkdirs:  make(map[string]struct{}),
		rmdirs:  make(map[string]struct{}),
		cached:  make(map[string]int64),
	}
}

// NewOS creates a staging filesystem backed by the host filesystem
func NewOS() *FS {
	return New(afero.NewOsFs())
}

// WriteFile stages data to be written to path
func (s *FS) WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to stage directory for %s: %w", path, err)
	}

	if err := afero.WriteFile(s.mem, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}

	s.writes[path] = struct{}{}
	s.cached[path] = int64(len(data))
	delete(s.deletes, path)

	return nil
}

// ReadFile returns the staged content of path, falling back to disk
func (s *FS) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)

	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	s.mu.Lock()
	_, deleted := s.deletes[path]
	_, cached := s.cached[path]
	if cached && !deleted {
		data, err := afero.ReadFile(s.mem, path)
		s.mu.Unlock()
		return data, err
	}
	s.mu.Unlock()

	if deleted {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}

	return afero.ReadFile(s.disk, path)
}

// Remove stages the deletion of the file at path
func (s *FS) Remove(path string) error {
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.writes, path)
	s.forget(path)
	s.deletes[path] = struct{}{}

	return nil
}

// MkdirAll stages the creation of dir and its parents
func (s *FS) MkdirAll(dir string) error {
	dir = filepath.Clean(dir)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rmdirs, dir)
	s.mkdirs[dir] = struct{}{}

	return nil
}

// RemoveAll stages the removal of dir and everything under it
func (s *FS) RemoveAll(dir string) error {
	dir = filepath.Clean(dir)
	prefix := dir + string(filepath.Separator)

	s.mu.Lock()
	defer s.mu.Unlock()

	for p := range s.writes {
		if strings.HasPrefix(p, prefix) {
			delete(s.writes, p)
			s.forget(p)
		}
	}

	delete(s.mkdirs, dir)
	s.rmdirs[dir] = struct{}{}

	return nil
}

// forget drops a path from the in-memory layer. Callers hold s.mu.
func (s *FS) forget(path string) {
	if _, ok := s.cached[path]; ok {
		_ = s.mem.Remove(path)
		delete(s.cached, path)
	}
}

// List returns the files under dir in the staged view, sorted
func (s *FS) List(dir string) ([]string, error) {
	dir = filepath.Clean(dir)

	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	seen := make(map[string]struct{})

	err := afero.Walk(s.disk, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		if !info.IsDir() {
			seen[path] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	prefix := dir + string(filepath.Separator)

	s.mu.Lock()
	for p := range s.writes {
		if strings.HasPrefix(p, prefix) {
			seen[p] = struct{}{}
		}
	}

	for p := range s.deletes {
		delete(seen, p)
	}

	for d := range s.rmdirs {
		dprefix := d + string(filepath.Separator)
		for p := range seen {
			if _, pending := s.writes[p]; !pending && strings.HasPrefix(p, dprefix) {
				delete(seen, p)
			}
		}
	}
	s.mu.Unlock()

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)

	return out, nil
}

// Pending reports whether any operation is waiting to be committed
func (s *FS) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.writes)+len(s.deletes)+len(s.mkdirs)+len(s.rmdirs) > 0
}

type pendingOps struct {
	writes  map[string][]byte
	deletes []string
	mkdirs  []string
	rmdirs  []string
}

// take swaps out the pending operations so new writes can be staged while a
// commit is in flight
func (s *FS) take() (*pendingOps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := &pendingOps{writes: make(map[string][]byte, len(s.writes))}

	for p := range s.writes {
		data, err := afero.ReadFile(s.mem, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read staged %s: %w", p, err)
		}
		ops.writes[p] = data
	}

	ops.deletes = sortedKeys(s.deletes)
	ops.mkdirs = sortedKeys(s.mkdirs)
	ops.rmdirs = sortedKeys(s.rmdirs)

	s.writes = make(map[string]struct{})
	s.deletes = make(map[string]struct{})
	s.mkdirs = make(map[string]struct{})
	s.rmdirs = make(map[string]struct{})

	return ops, nil
}

// Commit flushes all staged operations to disk. Operations applied before a
// failure are reported in the returned result alongside the error.
func (s *FS) Commit() (*CommitResult, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	ops, err := s.take()
	if err != nil {
		return &CommitResult{}, err
	}

	result := &CommitResult{
		FilesWritten: []string{},
		FilesDeleted: []string{},
		DirsAdded:    []string{},
		DirsDeleted:  []string{},
	}

	for _, dir := range ops.mkdirs {
		if exists, _ := afero.DirExists(s.disk, dir); exists {
			continue
		}

		if err := s.disk.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		result.DirsAdded = append(result.DirsAdded, dir)
	}

	for _, path := range sortedKeys(ops.writes) {
		data := ops.writes[path]

		if existing, err := afero.ReadFile(s.disk, path); err == nil && bytes.Equal(existing, data) {
			continue
		}

		dir := filepath.Dir(path)
		if exists, _ := afero.DirExists(s.disk, dir); !exists {
			if err := s.disk.MkdirAll(dir, 0o755); err != nil {
				return result, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
			result.DirsAdded = append(result.DirsAdded, dir)
		}

		if err := afero.WriteFile(s.disk, path, data, 0o644); err != nil {
			return result, fmt.Errorf("failed to write %s: %w", path, err)
		}

		result.FilesWritten = append(result.FilesWritten, path)
	}

	for _, path := range ops.deletes {
		if err := s.disk.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return result, fmt.Errorf("failed to delete %s: %w", path, err)
		}

		result.FilesDeleted = append(result.FilesDeleted, path)
	}

	for _, dir := range ops.rmdirs {
		if exists, _ := afero.DirExists(s.disk, dir); !exists {
			continue
		}

		if err := s.disk.RemoveAll(dir); err != nil {
			return result, fmt.Errorf("failed to remove directory %s: %w", dir, err)
		}

		result.DirsDeleted = append(result.DirsDeleted, dir)
	}

	return result, nil
}

// MemoryStats describes the in-memory layer
func (s *FS) MemoryStats() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, size := range s.cached {
		total += size
	}

	return fmt.Sprintf("cached files: %d, size: %s, pending writes: %d, pending deletes: %d",
		len(s.cached), humanize.Bytes(uint64(total)), len(s.writes), len(s.deletes))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
