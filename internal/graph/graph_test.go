package graph

import (
	"context"
	"hash"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/task"
)

func newProxy(t *testing.T, reg *influence.Registry, name string, params task.Parameters, opts ...func(*task.FuncTask)) *TaskProxy {
	t.Helper()
	ft := &task.FuncTask{TaskName: name, TaskParameters: params, IsCacheable: true}
	for _, o := range opts {
		o(ft)
	}
	return NewTaskProxy(ft, task.QualifiedName(name, params), reg)
}

func withResource() func(*task.FuncTask) {
	return func(f *task.FuncTask) { f.IsResource = true }
}

func baselineRegistry() *influence.Registry {
	r := influence.NewRegistry()
	r.RegisterGlobal(influence.ParameterInfluence{})
	return r
}

func TestIdentityIsDeterministicAcrossCalls(t *testing.T) {
	reg := baselineRegistry()
	p := newProxy(t, reg, "compiler", task.Parameters{"arch": "amd64"})

	id1, err := p.Identity()
	require.NoError(t, err)
	id2, err := p.Identity()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestIdentityDiffersOnDifferentParameters(t *testing.T) {
	reg := baselineRegistry()
	a := newProxy(t, reg, "compiler", task.Parameters{"arch": "amd64"})
	b := newProxy(t, reg, "compiler", task.Parameters{"arch": "arm64"})

	idA, err := a.Identity()
	require.NoError(t, err)
	idB, err := b.Identity()
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
}

func TestIdentityIsLocalToUnrelatedTasks(t *testing.T) {
	reg := baselineRegistry()
	a := newProxy(t, reg, "compiler", nil)
	b := newProxy(t, reg, "linker", nil)

	idA, err := a.Identity()
	require.NoError(t, err)
	idB, err := b.Identity()
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
}

func TestIdentityIncludesChildrenAfterFinalize(t *testing.T) {
	reg := baselineRegistry()
	g := New()

	dep := newProxy(t, reg, "fetch", nil)
	parentWithDep := newProxy(t, reg, "compiler", task.Parameters{"v": "1"})
	parentWithoutDep := newProxy(t, reg, "compiler", task.Parameters{"v": "1"})

	g.AddNode(dep)
	g.AddNode(parentWithDep)
	g.AddEdge(parentWithDep, dep)
	parentWithDep.Finalize(g)

	g2 := New()
	g2.AddNode(parentWithoutDep)
	parentWithoutDep.Finalize(g2)

	idWith, err := parentWithDep.Identity()
	require.NoError(t, err)
	idWithout, err := parentWithoutDep.Identity()
	require.NoError(t, err)
	assert.NotEqual(t, idWith, idWithout)
}

// literalProvider writes a fixed string into the identity hash, for testing
// that task-local providers are actually consulted.
type literalProvider struct{ key, value string }

func (l literalProvider) Key() string { return l.key }

func (l literalProvider) Apply(_ influence.Influenced, h hash.Hash) error {
	_, err := h.Write([]byte(l.value))
	return err
}

func TestIdentityAppliesTaskLocalInfluenceProviders(t *testing.T) {
	reg := baselineRegistry()

	plain := newProxy(t, reg, "compiler", nil)
	withProvider := newProxy(t, reg, "compiler", nil, func(f *task.FuncTask) {
		f.Providers = []influence.Provider{literalProvider{key: "flags", value: "debug"}}
	})

	idPlain, err := plain.Identity()
	require.NoError(t, err)
	idWithProvider, err := withProvider.Identity()
	require.NoError(t, err)

	assert.NotEqual(t, idPlain, idWithProvider, "Task.Influence() providers must contribute to identity")
}

func TestGraphAddEdgeAndLeaves(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	g.AddEdge(a, b)

	leaves := g.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, "b", leaves[0].QualifiedName())
	assert.True(t, g.IsLeaf(b))
	assert.False(t, g.IsLeaf(a))
	assert.True(t, g.IsRoot(a))
	assert.False(t, g.IsRoot(b))
}

func TestGraphDescendantsAndAncestors(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	c := newProxy(t, reg, "c", nil)
	g.AddEdge(a, b)
	g.AddEdge(b, c)

	desc := namesOf(g.Descendants(a))
	assert.ElementsMatch(t, []string{"b", "c"}, desc)

	anc := namesOf(g.Ancestors(c))
	assert.ElementsMatch(t, []string{"a", "b"}, anc)
}

func TestAreNeighbors(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	c := newProxy(t, reg, "c", nil)
	g.AddEdge(a, b)
	g.AddEdge(b, c)

	assert.True(t, g.AreNeighbors(a, b))
	assert.False(t, g.AreNeighbors(a, c))
}

func TestFinalizePrunesNonAdjacentResourceDescendants(t *testing.T) {
	reg := baselineRegistry()
	g := New()

	resource := newProxy(t, reg, "fetch", nil, withResource())
	mid := newProxy(t, reg, "compiler", nil)
	top := newProxy(t, reg, "linker", nil)

	g.AddEdge(mid, resource)
	g.AddEdge(top, mid)

	mid.Finalize(g)
	top.Finalize(g)

	midChildren := namesOf(mid.Children())
	assert.Contains(t, midChildren, "fetch", "direct neighbor resource is kept")

	topChildren := namesOf(top.Children())
	assert.NotContains(t, topChildren, "fetch", "non-adjacent resource descendant is pruned")
	assert.Contains(t, topChildren, "compiler")
}

func TestDetectCycleOnAcyclicGraph(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	g.AddEdge(a, b)

	ok, witness := g.DetectCycle()
	assert.True(t, ok)
	assert.Nil(t, witness)
}

func TestDetectCycleFindsWitness(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	c := newProxy(t, reg, "c", nil)
	g.AddEdge(a, b)
	g.AddEdge(b, c)
	g.AddEdge(c, a)

	ok, witness := g.DetectCycle()
	require.False(t, ok)
	require.NotEmpty(t, witness)
	assert.Equal(t, witness[0], witness[len(witness)-1])
}

func TestTrySetInProgressClaimsExactlyOnce(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	g.AddNode(a)

	assert.True(t, g.TrySetInProgress(a))
	assert.False(t, g.TrySetInProgress(a))
}

func TestTrySetInProgressRefusesExtension(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	base := newProxy(t, reg, "compiler", nil)
	ext := newProxy(t, reg, "compiler-debug", nil, func(f *task.FuncTask) { f.ExtendsName = "compiler" })
	g.AddNode(base)
	g.AddNode(ext)

	assert.False(t, g.TrySetInProgress(ext))
}

func TestTrySetInProgressRefusesNodeWithPendingDependency(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	g.AddEdge(a, b)

	assert.False(t, g.TrySetInProgress(a))
	assert.True(t, g.TrySetInProgress(b))
}

func TestMarkCompletedRemovesNodeAndUnblocksDependents(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	g.AddEdge(a, b)

	require.True(t, g.TrySetInProgress(b))
	g.MarkCompleted(b, time.Millisecond)

	assert.True(t, b.Completed())
	assert.False(t, b.Cached())
	_, ok := g.Node("b")
	assert.False(t, ok)
	assert.True(t, g.IsLeaf(a))
}

func TestMarkCompletedCachedSetsCachedFlag(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)

	require.True(t, g.TrySetInProgress(a))
	g.MarkCompletedCached(a, time.Millisecond)

	assert.True(t, a.Completed())
	assert.True(t, a.Cached())
}

func TestMarkFailedCancelsAncestors(t *testing.T) {
	reg := baselineRegistry()
	g := New()
	a := newProxy(t, reg, "a", nil)
	b := newProxy(t, reg, "b", nil)
	c := newProxy(t, reg, "c", nil)
	g.AddEdge(a, b)
	g.AddEdge(b, c)

	require.True(t, g.TrySetInProgress(c))
	g.MarkFailed(c, time.Millisecond)

	assert.True(t, c.Failed())
	assert.True(t, b.Cancelled())
	assert.True(t, a.Cancelled())

	for _, qn := range []string{"a", "b", "c"} {
		_, ok := g.Node(qn)
		assert.False(t, ok, "%s should have been removed", qn)
	}
}

func TestIsCachedChecksExtensionsToo(t *testing.T) {
	reg := baselineRegistry()
	base := newProxy(t, reg, "compiler", nil)
	ext := newProxy(t, reg, "compiler-debug", nil, func(f *task.FuncTask) { f.ExtendsName = "compiler" })
	base.AddExtension(ext)

	cache := &fakeCache{available: map[string]bool{}}
	ok, err := base.IsCached(context.Background(), cache, false)
	require.NoError(t, err)
	assert.False(t, ok, "nothing cached yet")

	cache.available[base.QualifiedName()] = true
	cache.available[ext.QualifiedName()] = true
	ok, err = base.IsCached(context.Background(), cache, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func namesOf(proxies []*TaskProxy) []string {
	out := make([]string, 0, len(proxies))
	for _, p := range proxies {
		out = append(out, p.QualifiedName())
	}
	return out
}
