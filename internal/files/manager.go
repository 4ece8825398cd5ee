package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager writes export artifacts below a base directory
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager creates a new file manager instance. Relative paths resolve
// against baseDir.
func NewManager(baseDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{baseDir: baseDir, logger: logger.With("component", "files")}
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(m.resolvePath(path))
	return err == nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.resolvePath(path)

	m.logger.Debug("Ensuring directory exists",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.MkdirAll(fullPath, 0755)
}

// Create opens path for writing, creating parent directories. The file is
// written to a temporary name and renamed into place by Commit.
func (m *Manager) Create(path string) (*PendingFile, error) {
	fullPath := m.resolvePath(path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	m.logger.Info("Writing file",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return &PendingFile{File: f, target: fullPath}, nil
}

// WriteFile writes data to a file atomically
func (m *Manager) WriteFile(path string, data []byte) error {
	pf, err := m.Create(path)
	if err != nil {
		return err
	}
	if _, err := pf.Write(data); err != nil {
		pf.Abort()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return pf.Commit()
}

// resolvePath resolves a path relative to the base directory
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) || m.baseDir == "" {
		return path
	}
	return filepath.Join(m.baseDir, path)
}

// PendingFile is a file being written that only becomes visible at its
// target path after Commit
type PendingFile struct {
	*os.File
	target string
}

// Commit syncs, closes and renames the file into place
func (p *PendingFile) Commit() error {
	if err := p.Sync(); err != nil {
		p.Abort()
		return fmt.Errorf("failed to sync %s: %w", p.target, err)
	}
	if err := p.Close(); err != nil {
		os.Remove(p.Name())
		return fmt.Errorf("failed to close %s: %w", p.target, err)
	}
	if err := os.Rename(p.Name(), p.target); err != nil {
		os.Remove(p.Name())
		return fmt.Errorf("failed to rename into %s: %w", p.target, err)
	}
	return nil
}

// Abort discards the partially written file
func (p *PendingFile) Abort() {
	p.Close()
	os.Remove(p.Name())
}
