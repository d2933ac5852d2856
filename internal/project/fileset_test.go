package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "simple_file", path: "build.gradle", wantErr: false},
		{name: "nested_file", path: "src/main/AndroidManifest.xml", wantErr: false},
		{name: "dot_segment_resolved", path: "src/./main.xml", wantErr: false},
		{name: "empty_path", path: "", wantErr: true},
		{name: "absolute_path", path: "/etc/passwd", wantErr: true},
		{name: "parent_traversal", path: "../outside.txt", wantErr: true},
		{name: "embedded_traversal", path: "src/../../outside.txt", wantErr: true},
		{name: "backslash_separator", path: `src\main\evil.txt`, wantErr: true},
		{name: "bare_dot", path: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaterialize(t *testing.T) {
	t.Run("writes_every_file_with_exact_content", func(t *testing.T) {
		dir := t.TempDir()
		fs := FileSet{
			"a/b.txt": "hello",
			"c.txt":   "world",
		}

		require.NoError(t, Materialize(fs, dir))

		got, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))

		got, err = os.ReadFile(filepath.Join(dir, "c.txt"))
		require.NoError(t, err)
		assert.Equal(t, "world", string(got))

		// No extra files beyond the FileSet.
		var files []string
		err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				rel, _ := filepath.Rel(dir, p)
				files = append(files, filepath.ToSlash(rel))
			}
			return nil
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a/b.txt", "c.txt"}, files)
	})

	t.Run("overwrites_existing_file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("stale"), 0o644))

		require.NoError(t, Materialize(FileSet{"c.txt": "fresh"}, dir))

		got, err := os.ReadFile(filepath.Join(dir, "c.txt"))
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(got))
	})

	t.Run("idempotent", func(t *testing.T) {
		dir := t.TempDir()
		fs := FileSet{"a/b.txt": "hello", "c.txt": "world"}

		require.NoError(t, Materialize(fs, dir))
		require.NoError(t, Materialize(fs, dir))

		got, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))
	})

	t.Run("rejects_traversal_before_any_write", func(t *testing.T) {
		dir := t.TempDir()
		fs := FileSet{
			"ok.txt":         "fine",
			"../escape.txt":  "nope",
		}

		err := Materialize(fs, dir)
		assert.Error(t, err)

		// Validation runs up front, so nothing was written.
		_, statErr := os.Stat(filepath.Join(dir, "ok.txt"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("fails_when_path_component_is_a_file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("file"), 0o644))

		err := Materialize(FileSet{"a/b.txt": "hello"}, dir)
		assert.Error(t, err)
	})
}
