package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore provides a file-based backend with one JSON file per collection.
type FileStore struct {
	basePath string
}

// NewFileStore creates a new FileStore and ensures the base directory exists.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

// sanitizeKey makes the collection key safe for filenames.
func sanitizeKey(key string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "-").Replace(key)
}

// getPath returns the full path for a given collection key.
func (s *FileStore) getPath(key string) string {
	return filepath.Join(s.basePath, sanitizeKey(key)+".json")
}

// Get reads the collection file. A missing file is not an error.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}
	return data, nil
}

// Put writes the collection to a temp file and renames it over the old one,
// so readers see either the previous or the new contents.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(s.basePath, sanitizeKey(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write collection file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync collection file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close collection file: %w", err)
	}

	if err := os.Rename(tmpPath, s.getPath(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace collection file: %w", err)
	}
	return nil
}

// Exists checks if a collection file exists.
func (s *FileStore) Exists(key string) bool {
	_, err := os.Stat(s.getPath(key))
	return !os.IsNotExist(err)
}

// RemoveStaleTemps removes temp files left behind by an interrupted Put.
func (s *FileStore) RemoveStaleTemps() error {
	matches, err := filepath.Glob(filepath.Join(s.basePath, "*.tmp"))
	if err != nil {
		return fmt.Errorf("failed to glob stale files: %w", err)
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("failed to remove stale file %s: %w", match, err)
		}
	}
	return nil
}
