package project

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZipEntries(t *testing.T, r *zip.Reader) map[string]string {
	t.Helper()
	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func TestBuildArchive(t *testing.T) {
	t.Run("entries_match_tree_exactly", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, Materialize(FileSet{"a/b.txt": "hello", "c.txt": "world"}, dir))

		r, err := BuildArchive(dir)
		require.NoError(t, err)

		zr, err := zip.NewReader(r, r.Size())
		require.NoError(t, err)

		entries := readZipEntries(t, zr)
		assert.Equal(t, map[string]string{
			"a/b.txt": "hello",
			"c.txt":   "world",
		}, entries)
	})

	t.Run("entry_order_is_sorted", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, Materialize(FileSet{
			"z.txt":       "z",
			"a/deep/x":    "x",
			"m.txt":       "m",
		}, dir))

		r, err := BuildArchive(dir)
		require.NoError(t, err)
		zr, err := zip.NewReader(r, r.Size())
		require.NoError(t, err)

		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"a/deep/x", "m.txt", "z.txt"}, names)
	})

	t.Run("deterministic_for_identical_trees", func(t *testing.T) {
		fs := FileSet{"a/b.txt": "hello", "c.txt": "world"}
		dir1 := t.TempDir()
		dir2 := t.TempDir()
		require.NoError(t, Materialize(fs, dir1))
		require.NoError(t, Materialize(fs, dir2))

		r1, err := BuildArchive(dir1)
		require.NoError(t, err)
		r2, err := BuildArchive(dir2)
		require.NoError(t, err)

		b1, err := io.ReadAll(r1)
		require.NoError(t, err)
		b2, err := io.ReadAll(r2)
		require.NoError(t, err)
		assert.Equal(t, b1, b2)
	})

	t.Run("round_trip", func(t *testing.T) {
		src := t.TempDir()
		require.NoError(t, Materialize(FileSet{"a/b.txt": "hello", "c.txt": "world"}, src))

		r, err := BuildArchive(src)
		require.NoError(t, err)
		zr, err := zip.NewReader(r, r.Size())
		require.NoError(t, err)

		// Extract into a fresh directory.
		dst := t.TempDir()
		for _, f := range zr.File {
			target := filepath.Join(dst, filepath.FromSlash(f.Name))
			require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(target, data, 0o644))
		}

		// Re-archiving the extraction yields the same entry set and content.
		r2, err := BuildArchive(dst)
		require.NoError(t, err)
		zr2, err := zip.NewReader(r2, r2.Size())
		require.NoError(t, err)
		assert.Equal(t, readZipEntries(t, zr), readZipEntries(t, zr2))
	})

	t.Run("missing_root_is_an_error", func(t *testing.T) {
		_, err := BuildArchive(filepath.Join(t.TempDir(), "does-not-exist"))
		assert.Error(t, err)
	})
}

func TestWriteArchive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Materialize(FileSet{"c.txt": "world"}, dir))

	out := filepath.Join(t.TempDir(), "archives", "app.zip")
	require.NoError(t, WriteArchive(dir, out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 1)
	assert.Equal(t, "c.txt", zr.File[0].Name)
}

func TestArchiveName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 9, 0, time.UTC)

	assert.Equal(t, "habit_tracker_20240305_143009.zip", ArchiveName("habit_tracker", ts, true))
	assert.Equal(t, "habit_tracker.zip", ArchiveName("habit_tracker", ts, false))
	assert.Equal(t, "android_app.zip", ArchiveName("", ts, false))
}
