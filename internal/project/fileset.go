package project

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSet maps relative file paths (forward-slash separated) to text
// content. It is the unmaterialized form of a generated project: built once
// per request, read-only afterwards, discarded after materialization.
type FileSet map[string]string

// ValidatePath checks that a FileSet key is a clean relative path that
// cannot resolve outside a destination root. Model output is untrusted
// input, so traversal segments, absolute paths and backslash separators
// are all rejected before anything touches the filesystem.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path %q: backslash separators not allowed", p)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q: absolute paths not allowed", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path %q: escapes destination root", p)
	}
	return nil
}

// Validate checks every path in the FileSet. It runs before any write so a
// bad path never leaves a partial tree behind.
func (fs FileSet) Validate() error {
	for p := range fs {
		if err := ValidatePath(p); err != nil {
			return err
		}
	}
	return nil
}

// Materialize writes every file in the FileSet under rootDir, creating
// ancestor directories as needed and replacing any existing file at the
// same path. Writes are not atomic across the set: an I/O failure partway
// through leaves the already-written files in place and is reported to the
// caller.
func Materialize(fs FileSet, rootDir string) error {
	if err := fs.Validate(); err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	for rel, content := range fs {
		target := filepath.Join(rootDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("materialize %s: %w", rel, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("materialize %s: %w", rel, err)
		}
	}
	return nil
}
