// Package tiered composes a required local store and an optional remote
// store into a single cache.ArtifactCache: the multi-tier cache the executor
// consults before running a task and populates after one completes.
package tiered

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/cache/local"
)

// Cache implements cache.ArtifactCache over a required local tier and an
// optional remote tier. Scratch directories for in-flight builds live under
// a "workspaces" subdirectory of the local store's root, separate from
// committed artifacts.
type Cache struct {
	local      *local.Store
	remote     cache.Store // nil when no remote tier is configured
	scratchDir string
}

// New constructs a Cache. remote may be nil to run purely local.
func New(localStore *local.Store, remote cache.Store) (*Cache, error) {
	scratch := filepath.Join(localStore.Root(), "workspaces")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("tiered: create scratch dir: %w", err)
	}
	return &Cache{local: localStore, remote: remote, scratchDir: scratch}, nil
}

// identity resolves k's identity, wrapping a failure with k's qualified name
// for diagnostics.
func identity(k cache.Keyed) (string, error) {
	id, err := k.Identity()
	if err != nil {
		return "", fmt.Errorf("tiered: resolve identity for %q: %w", k.QualifiedName(), err)
	}
	return id, nil
}

// IsAvailable reports local availability, and remote availability too when
// network is true.
func (c *Cache) IsAvailable(ctx context.Context, k cache.Keyed, network bool) (bool, error) {
	ok, err := c.IsAvailableLocally(ctx, k)
	if err != nil || ok {
		return ok, err
	}
	if !network {
		return false, nil
	}
	return c.IsAvailableRemotely(ctx, k)
}

// IsAvailableLocally reports whether k's artifact is present locally.
func (c *Cache) IsAvailableLocally(ctx context.Context, k cache.Keyed) (bool, error) {
	id, err := identity(k)
	if err != nil {
		return false, err
	}
	ok, err := c.local.Has(ctx, id)
	if err != nil {
		return false, fmt.Errorf("tiered: local lookup for %q: %w", k.QualifiedName(), err)
	}
	return ok, nil
}

// IsAvailableRemotely reports whether k's artifact is present remotely.
// Returns false, nil when no remote tier is configured.
func (c *Cache) IsAvailableRemotely(ctx context.Context, k cache.Keyed) (bool, error) {
	if c.remote == nil {
		return false, nil
	}
	id, err := identity(k)
	if err != nil {
		return false, err
	}
	ok, err := c.remote.Has(ctx, id)
	if err != nil {
		return false, fmt.Errorf("tiered: remote lookup for %q: %w", k.QualifiedName(), err)
	}
	return ok, nil
}

// Download fetches k's artifact from the remote tier into local storage.
func (c *Cache) Download(ctx context.Context, k cache.Keyed) error {
	if c.remote == nil {
		return fmt.Errorf("tiered: download %q: no remote tier configured", k.QualifiedName())
	}
	id, err := identity(k)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := c.remote.Get(ctx, id, &buf); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return err
		}
		return fmt.Errorf("tiered: download %q: %w", k.QualifiedName(), err)
	}
	if err := c.local.Put(ctx, id, &buf); err != nil {
		return fmt.Errorf("tiered: store downloaded artifact for %q: %w", k.QualifiedName(), err)
	}
	return nil
}

// Upload pushes k's locally-available artifact to the remote tier. If force
// is false and the remote already has it, Upload is a no-op.
func (c *Cache) Upload(ctx context.Context, k cache.Keyed, force bool) (bool, error) {
	if c.remote == nil {
		return false, nil
	}
	id, err := identity(k)
	if err != nil {
		return false, err
	}

	if !force {
		has, err := c.remote.Has(ctx, id)
		if err != nil {
			return false, fmt.Errorf("tiered: check remote before upload of %q: %w", k.QualifiedName(), err)
		}
		if has {
			return false, nil
		}
	}

	var buf bytes.Buffer
	if err := c.local.Get(ctx, id, &buf); err != nil {
		return false, fmt.Errorf("tiered: read local artifact for upload of %q: %w", k.QualifiedName(), err)
	}
	if err := c.remote.Put(ctx, id, &buf); err != nil {
		return false, fmt.Errorf("tiered: upload %q: %w", k.QualifiedName(), err)
	}
	return true, nil
}

// GetWorkspace allocates a scratch directory under scratchDir for k's Run
// callable. Commit tars the directory contents into the local store keyed by
// k's identity; Discard just removes the scratch directory.
func (c *Cache) GetWorkspace(_ context.Context, k cache.Keyed) (*cache.Workspace, error) {
	id, err := identity(k)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(c.scratchDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tiered: create workspace for %q: %w", k.QualifiedName(), err)
	}

	commit := func() (*cache.Artifact, error) {
		defer os.RemoveAll(dir)

		var buf bytes.Buffer
		if err := tarDir(dir, &buf); err != nil {
			return nil, fmt.Errorf("tiered: package artifact for %q: %w", k.QualifiedName(), err)
		}
		if err := c.local.Put(context.Background(), id, &buf); err != nil {
			return nil, fmt.Errorf("tiered: commit artifact for %q: %w", k.QualifiedName(), err)
		}
		return c.GetArtifact(context.Background(), k)
	}
	discard := func() error {
		return os.RemoveAll(dir)
	}

	return cache.NewWorkspace(dir, commit, discard), nil
}

// GetArtifact materializes k's stored artifact into a fresh directory and
// returns it.
func (c *Cache) GetArtifact(ctx context.Context, k cache.Keyed) (*cache.Artifact, error) {
	id, err := identity(k)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := c.local.Get(ctx, id, &buf); err != nil {
		return nil, fmt.Errorf("tiered: read artifact for %q: %w", k.QualifiedName(), err)
	}

	dir := filepath.Join(c.scratchDir, id+".artifact")
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := untarDir(dir, &buf); err != nil {
		return nil, fmt.Errorf("tiered: unpack artifact for %q: %w", k.QualifiedName(), err)
	}

	return &cache.Artifact{Dir: dir}, nil
}
