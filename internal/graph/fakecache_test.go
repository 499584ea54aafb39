package graph

import (
	"context"

	"github.com/trellixvulnteam/jolt/internal/cache"
)

// fakeCache is a minimal in-memory cache.ArtifactCache used to exercise
// TaskProxy.IsCached without pulling in a real storage tier.
type fakeCache struct {
	available map[string]bool
}

func (f *fakeCache) IsAvailable(_ context.Context, k cache.Keyed, _ bool) (bool, error) {
	return f.IsAvailableLocally(nil, k)
}

func (f *fakeCache) IsAvailableLocally(_ context.Context, k cache.Keyed) (bool, error) {
	id, err := k.Identity()
	if err != nil {
		return false, err
	}
	return f.available[id] || f.available[k.QualifiedName()], nil
}

func (f *fakeCache) IsAvailableRemotely(context.Context, cache.Keyed) (bool, error) {
	return false, nil
}

func (f *fakeCache) Download(context.Context, cache.Keyed) error { return nil }

func (f *fakeCache) Upload(context.Context, cache.Keyed, bool) (bool, error) {
	return false, nil
}

func (f *fakeCache) GetWorkspace(context.Context, cache.Keyed) (*cache.Workspace, error) {
	return cache.NewWorkspace("", func() (*cache.Artifact, error) { return &cache.Artifact{}, nil }, func() error { return nil }), nil
}

func (f *fakeCache) GetArtifact(context.Context, cache.Keyed) (*cache.Artifact, error) {
	return &cache.Artifact{}, nil
}
