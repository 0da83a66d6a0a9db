package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"doc-merge-server/internal/domain"
)

// LocalOutputStore implements the domain.OutputStore interface on top
// of a plain directory. Colliding names are overwritten, last write
// wins.
type LocalOutputStore struct {
	dir    string
	logger domain.Logger
}

// NewLocalOutputStore creates a new local output store rooted at dir
func NewLocalOutputStore(dir string, logger domain.Logger) (*LocalOutputStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalOutputStore{
		dir:    dir,
		logger: logger,
	}, nil
}

// Store writes the merged document under its final name and returns
// the path a later Open call accepts.
func (s *LocalOutputStore) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	target := filepath.Join(s.dir, filepath.Base(name))

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	s.logger.Debug("Stored merged document", "path", target)
	return target, nil
}

// Open returns a reader over a previously stored document and its size.
func (s *LocalOutputStore) Open(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open output file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat output file: %w", err)
	}
	return f, info.Size(), nil
}
