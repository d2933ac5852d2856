package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspaces owns per-generation working directories under a common root.
// Every generation gets its own uniquely-named directory, so concurrent
// requests never share scratch space.
type Workspaces struct {
	root string
}

// NewWorkspaces ensures the workspace root exists and is accessible.
func NewWorkspaces(root string) (*Workspaces, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspaces{root: root}, nil
}

// Prepare creates an empty, isolated directory for the given generation ID.
// Any leftover directory from a previous run with the same ID is removed
// first, so stale files cannot leak into a fresh materialization.
func (w *Workspaces) Prepare(generationID string) (string, error) {
	if generationID == "" {
		return "", fmt.Errorf("workspace identifier cannot be empty")
	}
	dir := filepath.Join(w.root, generationID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("cleanup workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// Cleanup removes a workspace directory. Paths outside the configured root
// are refused.
func (w *Workspaces) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to cleanup path outside workspace root")
	}
	return os.RemoveAll(path)
}

// CleanupByID removes the workspace for the given generation ID.
func (w *Workspaces) CleanupByID(generationID string) error {
	if generationID == "" {
		return fmt.Errorf("workspace identifier cannot be empty")
	}
	return w.Cleanup(filepath.Join(w.root, generationID))
}
