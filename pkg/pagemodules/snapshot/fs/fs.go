package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/page-modules/pkg/pagemodules"
)

// Store is a filesystem implementation of the pagemodules.SnapshotStore
// interface. Keys map to paths below BaseDir.
type Store struct {
	baseDir string
}

// Config options for the filesystem store
type Config struct {
	BaseDir string // Base directory for snapshot files
}

// New creates a new filesystem snapshot store
func New(config Config) (*Store, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: config.BaseDir}, nil
}

func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid snapshot key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// Put writes the snapshot. Readers never observe a partially written file:
// content goes to a temporary file that is renamed into place.
func (s *Store) Put(ctx context.Context, key string, reader io.Reader) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Get opens the snapshot stored under key
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot %s: %w", key, pagemodules.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes the snapshot stored under key
func (s *Store) Delete(ctx context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if os.IsNotExist(err) {
		return fmt.Errorf("snapshot %s: %w", key, pagemodules.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
