// Package builder assembles a graph.Graph from a set of requested task
// names by resolving requirements recursively against a task.Registry,
// deduplicating by qualified name, wiring extensions to the tasks they
// extend, and rejecting cyclic requirement sets.
package builder

import (
	"fmt"

	"github.com/trellixvulnteam/jolt/internal/graph"
	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/task"
	"github.com/trellixvulnteam/jolt/pkg/jolterrors"
)

// GraphBuilder resolves requested task names into a fully wired graph.Graph.
type GraphBuilder struct {
	registry   task.Registry
	influences *influence.Registry
}

// New creates a GraphBuilder backed by registry, applying influences when
// computing each resolved proxy's identity.
func New(registry task.Registry, influences *influence.Registry) *GraphBuilder {
	return &GraphBuilder{registry: registry, influences: influences}
}

// Build resolves names into a graph.Graph containing every transitive
// requirement, with extensions wired to the task they extend. It returns the
// graph and the proxies directly requested by names (the build's roots of
// interest, though not necessarily graph.IsRoot in general since one
// requested task may require another). An unknown requirement name produces
// a GraphError; a cyclic requirement set produces a GraphError naming the
// cycle witness. Every node's identity is computed before Build returns, so
// a failing influence provider yields its IdentityError here, before any
// task runs.
func (b *GraphBuilder) Build(names []string) (*graph.Graph, []*graph.TaskProxy, error) {
	g := graph.New()
	resolved := make(map[string]*graph.TaskProxy)

	requested := make([]*graph.TaskProxy, 0, len(names))
	for _, name := range names {
		p, err := b.resolve(g, resolved, name)
		if err != nil {
			return nil, nil, err
		}
		requested = append(requested, p)
	}

	if ok, witness := g.DetectCycle(); !ok {
		return nil, nil, jolterrors.NewGraphError("cyclic task requirements", witness)
	}

	for _, p := range g.AllNodes() {
		p.Finalize(g)
	}
	for _, p := range g.AllNodes() {
		if _, err := p.Identity(); err != nil {
			return nil, nil, err
		}
	}

	return g, requested, nil
}

// resolve returns the proxy for qualifiedName, building and registering it
// (and recursively its requirements and extension) on first encounter.
func (b *GraphBuilder) resolve(g *graph.Graph, resolved map[string]*graph.TaskProxy, qualifiedName string) (*graph.TaskProxy, error) {
	if p, ok := resolved[qualifiedName]; ok {
		return p, nil
	}

	t, err := b.registry.GetTask(qualifiedName)
	if err != nil {
		return nil, jolterrors.NewGraphError(fmt.Sprintf("resolve %q: %v", qualifiedName, err), nil)
	}

	p := graph.NewTaskProxy(t, qualifiedName, b.influences)
	resolved[qualifiedName] = p
	g.AddNode(p)

	deps := make([]*graph.TaskProxy, 0, len(t.Requires()))
	for _, req := range t.Requires() {
		dep, err := b.resolve(g, resolved, req)
		if err != nil {
			return nil, err
		}
		g.AddEdge(p, dep)
		deps = append(deps, dep)
	}

	if extends := t.Extends(); extends != "" {
		base, err := b.resolve(g, resolved, extends)
		if err != nil {
			return nil, err
		}
		p.SetExtendedTask(base)
		base.AddExtension(p)
		// The host depends on the extension's own requirements directly, not
		// on the extension proxy itself: an extension is never independently
		// ready, so an edge to it would never clear and the host would never
		// become schedulable. The executor runs p as part of base's run
		// sequence instead (see Executor.runExtensions). When base is itself
		// an extension, the edges go to the first non-extension task up the
		// Extends() chain, since that is the task the scheduler runs.
		host := base
		for seen := map[*graph.TaskProxy]bool{p: true}; host.IsExtension() && !seen[host]; {
			seen[host] = true
			next, ok := resolved[host.Task().Extends()]
			if !ok {
				break
			}
			host = next
		}
		for _, dep := range deps {
			g.AddEdge(host, dep)
		}
	}

	return p, nil
}
