package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/tools"
)

const sampleManifest = `
- name: fetch
  resource: true
- name: compiler
  requires: ["fetch"]
  cacheable: true
- name: compiler
  parameters:
    arch: arm64
  requires: ["fetch"]
  cacheable: true
- name: compiler-debug
  extends: "compiler"
`

func TestLoadManifestRegistersEachEntryByQualifiedName(t *testing.T) {
	reg := NewMapRegistry()
	require.NoError(t, LoadManifest(reg, []byte(sampleManifest)))

	fetch, err := reg.GetTask("fetch")
	require.NoError(t, err)
	assert.True(t, fetch.Resource())

	compiler, err := reg.GetTask("compiler")
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, compiler.Requires())
	assert.True(t, compiler.Cacheable())

	parameterized, err := reg.GetTask("compiler:arch=arm64")
	require.NoError(t, err)
	assert.Equal(t, Parameters{"arch": "arm64"}, parameterized.Parameters())

	debug, err := reg.GetTask("compiler-debug")
	require.NoError(t, err)
	assert.Equal(t, "compiler", debug.Extends())
}

func TestLoadManifestRejectsInvalidYAML(t *testing.T) {
	reg := NewMapRegistry()
	err := LoadManifest(reg, []byte("not: [valid"))
	assert.Error(t, err)
}

func TestFuncTaskDelegatesToRunAndPublishFuncs(t *testing.T) {
	var ran, published bool
	ft := &FuncTask{
		TaskName: "compiler",
		RunFunc: func(ctx context.Context, ws *cache.Workspace, tl *tools.Tools) error {
			ran = true
			return nil
		},
		PublishFunc: func(ctx context.Context, artifact *cache.Artifact, tl *tools.Tools) error {
			published = true
			return nil
		},
	}

	require.NoError(t, ft.Run(context.Background(), nil, nil))
	require.NoError(t, ft.Publish(context.Background(), nil, nil))
	assert.True(t, ran)
	assert.True(t, published)
}

func TestFuncTaskRunAndPublishAreNoOpsWithoutFuncs(t *testing.T) {
	ft := &FuncTask{TaskName: "compiler"}
	assert.NoError(t, ft.Run(context.Background(), nil, nil))
	assert.NoError(t, ft.Publish(context.Background(), nil, nil))
}
