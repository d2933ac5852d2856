package project

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// BuildArchive walks rootDir recursively and packages every regular file
// into a zip archive. Entry names are the file paths relative to rootDir
// with forward-slash separators, written in sorted order so the archive is
// byte-reproducible for identical trees. The returned reader is positioned
// at the start of the archive.
func BuildArchive(rootDir string) (*bytes.Reader, error) {
	if _, err := os.Stat(rootDir); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	var paths []string
	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive walk: %w", err)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, rel := range paths {
		w, err := zw.Create(rel)
		if err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", rel, err)
		}
		f, err := os.Open(filepath.Join(rootDir, filepath.FromSlash(rel)))
		if err != nil {
			// A file disappearing mid-walk (race with a concurrent writer)
			// is reported, not silently skipped.
			return nil, fmt.Errorf("archive entry %s: %w", rel, err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("archive entry %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive finalize: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}

// WriteArchive materializes a tree's archive straight to a file on disk.
func WriteArchive(rootDir, outPath string) error {
	r, err := BuildArchive(rootDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("archive output dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("archive output: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("archive write: %w", err)
	}
	return nil
}

// ArchiveName builds the download filename for a generation. When
// timestamped, the format is <base>_<YYYYMMDD_HHMMSS>.zip.
func ArchiveName(base string, ts time.Time, timestamped bool) string {
	if base == "" {
		base = "android_app"
	}
	if !timestamped {
		return base + ".zip"
	}
	return fmt.Sprintf("%s_%s.zip", base, ts.Format("20060102_150405"))
}
