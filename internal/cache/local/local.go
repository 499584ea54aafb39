// Package local implements a filesystem-backed cache.Store. Artifacts are
// stored as a single file per identity under root, written to a temporary
// path and atomically renamed into place so a concurrent reader never
// observes a partially written artifact.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/trellixvulnteam/jolt/internal/cache"
)

// Store is a filesystem-backed cache.Store rooted at a directory.
type Store struct {
	root string
}

// New creates a Store rooted at root, creating it if necessary.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local: create root %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(identity string) string {
	return filepath.Join(s.root, identity)
}

// Has reports whether identity has a stored artifact.
func (s *Store) Has(_ context.Context, identity string) (bool, error) {
	_, err := os.Stat(s.path(identity))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Get streams identity's stored artifact into dst.
func (s *Store) Get(_ context.Context, identity string, dst io.Writer) error {
	f, err := os.Open(s.path(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return cache.ErrNotFound
		}
		return err
	}
	defer f.Close()

	_, err = io.Copy(dst, f)
	return err
}

// Put stores src as identity's artifact. The write goes to a temp file in
// root first and is renamed into place, so Has/Get never observe a partial
// write even under concurrent access.
func (s *Store) Put(_ context.Context, identity string, src io.Reader) error {
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("local: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("local: write %q: %w", identity, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("local: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(identity)); err != nil {
		return fmt.Errorf("local: commit %q: %w", identity, err)
	}
	return nil
}

// Root returns the directory the store is rooted at, for callers (like the
// tiered cache) that keep a scratch directory under it.
func (s *Store) Root() string {
	return s.root
}
