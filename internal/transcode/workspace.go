package transcode

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a per-job temporary directory holding transcoded artifacts.
// The job that created it owns it and must call Cleanup.
type Workspace struct {
	dir       string
	removeAll func(path string) error
}

// NewWorkspace creates a fresh directory under baseDir (os.TempDir when empty).
func NewWorkspace(baseDir string) (*Workspace, error) {
	dir, err := os.MkdirTemp(baseDir, "render-sender-*")
	if err != nil {
		return nil, fmt.Errorf("create transcode workspace: %w", err)
	}
	return &Workspace{dir: dir, removeAll: os.RemoveAll}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the deterministic output path for the file at index.
func (w *Workspace) Path(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("transcoded-%02d.mp4", index))
}

// Cleanup removes the workspace and everything in it. Safe to call twice.
func (w *Workspace) Cleanup() error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := w.removeAll(w.dir); err != nil {
		return err
	}
	w.dir = ""
	return nil
}
