package stagefs

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(parts ...string) string {
	return filepath.Join(append([]string{string(filepath.Separator)}, parts...)...)
}

func TestFS_WriteIsBufferedUntilCommit(t *testing.T) {
	disk := afero.NewMemMapFs()
	s := New(disk)

	require.NoError(t, s.WriteFile(p("www", "app.js"), []byte("console.log(1)")))

	exists, err := afero.Exists(disk, p("www", "app.js"))
	require.NoError(t, err)
	assert.False(t, exists, "write should not reach disk before commit")
	assert.True(t, s.Pending())

	data, err := s.ReadFile(p("www", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))

	result, err := s.Commit()
	require.NoError(t, err)

	assert.Equal(t, []string{p("www", "app.js")}, result.FilesWritten)
	assert.Equal(t, []string{p("www")}, result.DirsAdded)
	assert.False(t, s.Pending())

	onDisk, err := afero.ReadFile(disk, p("www", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(onDisk))
}

func TestFS_UnchangedWriteIsNotCounted(t *testing.T) {
	disk := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(disk, p("www", "a.css"), []byte("a{}"), 0o644))

	s := New(disk)
	require.NoError(t, s.WriteFile(p("www", "a.css"), []byte("a{}")))
	require.NoError(t, s.WriteFile(p("www", "b.css"), []byte("b{}")))

	result, err := s.Commit()
	require.NoError(t, err)

	assert.Equal(t, []string{p("www", "b.css")}, result.FilesWritten)
	assert.Empty(t, result.DirsAdded)
}

func TestFS_RemoveAndRemoveAll(t *testing.T) {
	disk := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(disk, p("www", "old.js"), []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(disk, p("www", "legacy", "x.js"), []byte("x"), 0o644))

	s := New(disk)
	require.NoError(t, s.Remove(p("www", "old.js")))
	require.NoError(t, s.Remove(p("www", "never-existed.js")))
	require.NoError(t, s.RemoveAll(p("www", "legacy")))
	require.NoError(t, s.RemoveAll(p("www", "missing")))

	_, err := s.ReadFile(p("www", "old.js"))
	require.Error(t, err)

	result, err := s.Commit()
	require.NoError(t, err)

	assert.Equal(t, []string{p("www", "old.js")}, result.FilesDeleted)
	assert.Equal(t, []string{p("www", "legacy")}, result.DirsDeleted)

	exists, _ := afero.DirExists(disk, p("www", "legacy"))
	assert.False(t, exists)
}

func TestFS_WriteAfterRemoveWins(t *testing.T) {
	disk := afero.NewMemMapFs()
	s := New(disk)

	require.NoError(t, s.Remove(p("www", "a.js")))
	require.NoError(t, s.WriteFile(p("www", "a.js"), []byte("new")))

	result, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{p("www", "a.js")}, result.FilesWritten)
	assert.Empty(t, result.FilesDeleted)
}

func TestFS_MkdirAll(t *testing.T) {
	disk := afero.NewMemMapFs()
	s := New(disk)

	require.NoError(t, s.MkdirAll(p("www", "assets")))

	result, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{p("www", "assets")}, result.DirsAdded)

	require.NoError(t, s.MkdirAll(p("www", "assets")))
	result, err = s.Commit()
	require.NoError(t, err)
	assert.Empty(t, result.DirsAdded, "existing directory should not be reported")
}

func TestFS_List(t *testing.T) {
	disk := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(disk, p("www", "a.js"), []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(disk, p("www", "b.js"), []byte("b"), 0o644))
	require.NoError(t, afero.WriteFile(disk, p("www", "old", "c.js"), []byte("c"), 0o644))

	s := New(disk)
	require.NoError(t, s.WriteFile(p("www", "d.js"), []byte("d")))
	require.NoError(t, s.WriteFile(p("other", "e.js"), []byte("e")))
	require.NoError(t, s.Remove(p("www", "b.js")))
	require.NoError(t, s.RemoveAll(p("www", "old")))

	files, err := s.List(p("www"))
	require.NoError(t, err)
	assert.Equal(t, []string{p("www", "a.js"), p("www", "d.js")}, files)

	missing, err := s.List(p("nowhere"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestFS_CommitFailure(t *testing.T) {
	s := New(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	require.NoError(t, s.WriteFile(p("www", "a.js"), []byte("a")))

	result, err := s.Commit()
	require.Error(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result.FilesWritten)
}

func TestFS_MemoryStats(t *testing.T) {
	s := New(afero.NewMemMapFs())
	require.NoError(t, s.WriteFile(p("www", "a.js"), make([]byte, 2048)))

	stats := s.MemoryStats()
	assert.Contains(t, stats, "cached files: 1")
	assert.Contains(t, stats, "2.0 kB")
	assert.Contains(t, stats, "pending writes: 1")
}
