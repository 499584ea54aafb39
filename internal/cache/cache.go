// Package cache defines the artifact cache contract: a keyed store of build
// outputs, checked before a task runs and populated after it completes
// successfully. Concrete tiers (local, remote/S3, and a composed tiered
// cache) live in the local, remote, and tiered subpackages.
package cache

import "context"

// Keyed is the minimal identity surface the cache needs from a graph node.
// It is satisfied by *graph.TaskProxy without this package importing graph,
// keeping the dependency one-directional (graph -> cache).
type Keyed interface {
	// Identity is the content hash used as the cache key. It can fail: an
	// identity is computed lazily from influence providers that may error.
	Identity() (string, error)
	// QualifiedName is used for logging and cache-path namespacing.
	QualifiedName() string
}

// Workspace is the scoped scratch directory a task's Run callable writes
// build outputs into. It is owned by whichever ArtifactCache implementation
// handed it out and must be finalized via Commit or Discard exactly once.
type Workspace struct {
	Dir string

	commit  func() (*Artifact, error)
	discard func() error
	done    bool
}

// NewWorkspace wraps dir with the given commit/discard callbacks. Exported
// for use by cache tier implementations (local, tiered); task code only
// consumes the result.
func NewWorkspace(dir string, commit func() (*Artifact, error), discard func() error) *Workspace {
	return &Workspace{Dir: dir, commit: commit, discard: discard}
}

// Commit finalizes the workspace as a committed Artifact. Calling it more
// than once, or after Discard, is a programming error and returns
// ErrAlreadyFinalized.
func (w *Workspace) Commit() (*Artifact, error) {
	if w.done {
		return nil, ErrAlreadyFinalized
	}
	w.done = true
	return w.commit()
}

// Discard abandons the workspace, e.g. because the task's Run callable
// failed. Safe to call even if the workspace was never written to.
func (w *Workspace) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.discard()
}

// Artifact is a committed, cacheable build output. Dir holds the files the
// task published; identity-keyed storage is the cache tier's responsibility.
type Artifact struct {
	Dir string
}

// ArtifactCache is the contract an executor uses to avoid rebuilding tasks
// whose identity already has a stored result, and to persist new results
// after a successful run.
type ArtifactCache interface {
	// IsAvailable reports whether k's artifact can be obtained, checking the
	// remote tier too when network is true.
	IsAvailable(ctx context.Context, k Keyed, network bool) (bool, error)
	// IsAvailableLocally reports whether k's artifact is present in local
	// storage without touching the network.
	IsAvailableLocally(ctx context.Context, k Keyed) (bool, error)
	// IsAvailableRemotely reports whether k's artifact is present in the
	// remote tier. Returns false, nil when no remote tier is configured.
	IsAvailableRemotely(ctx context.Context, k Keyed) (bool, error)
	// Download fetches k's artifact from the remote tier into local storage.
	// Non-fatal to callers: a failure here means "fall back to building".
	Download(ctx context.Context, k Keyed) error
	// Upload pushes k's already-locally-available artifact to the remote
	// tier. If force is false and the remote tier already has it, Upload is
	// a no-op and returns false, nil.
	Upload(ctx context.Context, k Keyed, force bool) (bool, error)
	// GetWorkspace allocates a scratch directory for k's Run callable to
	// write into.
	GetWorkspace(ctx context.Context, k Keyed) (*Workspace, error)
	// GetArtifact returns k's already-available artifact, for Publish or for
	// a downstream task that depends on k's output directly.
	GetArtifact(ctx context.Context, k Keyed) (*Artifact, error)
}
