// Package graph implements the task dependency DAG: TaskProxy wraps a
// task.Task with its identity, completion state, and graph position; Graph is
// the adjacency-list structure the builder assembles and the executor
// shrinks as tasks complete.
package graph

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/task"
	"github.com/trellixvulnteam/jolt/pkg/jolterrors"
)

// influenced adapts a task.Task to influence.Influenced. Kept here, rather
// than on task.Task itself, because task.Parameters is a named type and
// influence.Influenced.Parameters must return the unnamed map[string]string
// the influence package declares independently, to avoid task and influence
// importing each other.
type influenced struct{ t task.Task }

func (i influenced) Name() string                  { return i.t.Name() }
func (i influenced) Parameters() map[string]string { return i.t.Parameters() }

// TaskProxy wraps a task.Task with the bookkeeping the orchestrator needs:
// a lazily computed, memoized identity; its resolved children, ancestors and
// extensions within a built Graph; and its lifecycle state (fresh,
// in_progress, completed, or failed).
type TaskProxy struct {
	t             task.Task
	qualifiedName string
	influences    *influence.Registry

	identityOnce sync.Once
	identityVal  string
	identityErr  error

	mu           sync.Mutex
	children     []*TaskProxy // resource-pruned transitive dependencies, sorted
	ancestors    []*TaskProxy // transitive dependents, sorted
	extensions   []*TaskProxy // tasks that extend this one, in registration order
	extendedTask *TaskProxy   // the task this one extends, if any

	inProgress bool
	completed  bool
	cached     bool
	failed     bool
	cancelled  bool
	duration   time.Duration
}

// NewTaskProxy wraps t as a graph node identified by qualifiedName.
func NewTaskProxy(t task.Task, qualifiedName string, influences *influence.Registry) *TaskProxy {
	return &TaskProxy{t: t, qualifiedName: qualifiedName, influences: influences}
}

// Task returns the wrapped task.Task.
func (p *TaskProxy) Task() task.Task { return p.t }

// QualifiedName implements cache.Keyed and identifies this node in the graph.
func (p *TaskProxy) QualifiedName() string { return p.qualifiedName }

// IsExtension reports whether this proxy extends another task rather than
// being independently schedulable.
func (p *TaskProxy) IsExtension() bool { return p.t.Extends() != "" }

// Identity computes and memoizes this task's content hash on first call,
// combining its task name and its own influence contributions with its
// children's identities
// (already-memoized, since children are resolved before this node can be
// asked for its own identity) and, if it extends another task, that task's
// identity too. Concurrent callers block on the same sync.Once, so identity
// is computed exactly once regardless of how many goroutines request it
// first.
func (p *TaskProxy) Identity() (string, error) {
	p.identityOnce.Do(func() {
		p.identityVal, p.identityErr = p.computeIdentity()
	})
	return p.identityVal, p.identityErr
}

func (p *TaskProxy) computeIdentity() (string, error) {
	h := sha1.New()
	fmt.Fprintf(h, "task:%s\n", p.t.Name())

	if err := p.influences.ApplyAll(influenced{p.t}, h); err != nil {
		return "", jolterrors.NewIdentityError(p.qualifiedName, err)
	}
	for _, prov := range p.t.Influence() {
		if err := prov.Apply(influenced{p.t}, h); err != nil {
			return "", jolterrors.NewIdentityError(p.qualifiedName, fmt.Errorf("task-local provider %q: %w", prov.Key(), err))
		}
	}

	p.mu.Lock()
	children := append([]*TaskProxy(nil), p.children...)
	extendedTask := p.extendedTask
	p.mu.Unlock()

	for _, c := range children {
		childID, err := c.Identity()
		if err != nil {
			return "", jolterrors.NewIdentityError(p.qualifiedName, fmt.Errorf("dependency %q: %w", c.qualifiedName, err))
		}
		fmt.Fprintf(h, "child:%s\n", childID)
	}

	if extendedTask != nil {
		extID, err := extendedTask.Identity()
		if err != nil {
			return "", jolterrors.NewIdentityError(p.qualifiedName, fmt.Errorf("extends %q: %w", extendedTask.qualifiedName, err))
		}
		fmt.Fprintf(h, "extends:%s\n", extID)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Children returns the resource-pruned transitive dependency set computed at
// Finalize time, sorted by qualified name.
func (p *TaskProxy) Children() []*TaskProxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*TaskProxy(nil), p.children...)
}

// Ancestors returns the transitive dependent set computed at Finalize time,
// sorted by qualified name.
func (p *TaskProxy) Ancestors() []*TaskProxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*TaskProxy(nil), p.ancestors...)
}

// Extensions returns the tasks that extend this one, in registration order.
func (p *TaskProxy) Extensions() []*TaskProxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*TaskProxy(nil), p.extensions...)
}

// IsReady reports whether p can be scheduled now: not already running or
// finished, not an extension (extensions run bundled with the task they
// extend), and with no remaining unresolved dependencies in g.
func (p *TaskProxy) IsReady(g *Graph) bool {
	p.mu.Lock()
	state := p.inProgress || p.completed || p.failed || p.cancelled
	p.mu.Unlock()
	if state || p.IsExtension() {
		return false
	}
	return g.IsLeaf(p)
}

// IsCached reports whether p's artifact, and every extension's artifact, is
// already available in c, so running p can be skipped.
func (p *TaskProxy) IsCached(ctx context.Context, c cache.ArtifactCache, network bool) (bool, error) {
	if !p.t.Cacheable() {
		return false, nil
	}
	ok, err := c.IsAvailable(ctx, p, network)
	if err != nil || !ok {
		return ok, err
	}
	for _, ext := range p.Extensions() {
		if !ext.t.Cacheable() {
			continue
		}
		ok, err := c.IsAvailable(ctx, ext, network)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// Completed reports whether p finished successfully.
func (p *TaskProxy) Completed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Failed reports whether p finished with an error.
func (p *TaskProxy) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Cancelled reports whether p was cancelled as an ancestor of a failed task.
func (p *TaskProxy) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Cached reports whether p's completion was served from the artifact cache
// rather than by actually running the task.
func (p *TaskProxy) Cached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cached
}

// Duration returns how long p's run took, valid once Completed or Failed.
func (p *TaskProxy) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

// SetExtendedTask records that p extends ext. Called by the builder while
// resolving a task's Extends() name to a proxy.
func (p *TaskProxy) SetExtendedTask(ext *TaskProxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extendedTask = ext
}

// AddExtension records ext as a task that extends p, in the order the
// builder encounters them.
func (p *TaskProxy) AddExtension(ext *TaskProxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extensions = append(p.extensions, ext)
}

// Finalize populates children and ancestors from g. Called once by the
// builder after the whole graph is assembled, before execution begins.
func (p *TaskProxy) Finalize(g *Graph) {
	desc := g.Descendants(p)
	pruned := make([]*TaskProxy, 0, len(desc))
	for _, d := range desc {
		if d.t.Resource() && !g.AreNeighbors(p, d) {
			continue
		}
		pruned = append(pruned, d)
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].qualifiedName < pruned[j].qualifiedName })

	anc := g.Ancestors(p)
	sort.Slice(anc, func(i, j int) bool { return anc[i].qualifiedName < anc[j].qualifiedName })

	p.mu.Lock()
	p.children = pruned
	p.ancestors = anc
	p.mu.Unlock()
}

// Graph is the adjacency-list DAG of TaskProxy nodes. An edge from u to v
// means u depends on v: v must complete before u can run. The zero value is
// not usable; construct with New.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*TaskProxy
	out   map[string]map[string]struct{} // qualifiedName -> dependencies
	in    map[string]map[string]struct{} // qualifiedName -> dependents
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*TaskProxy),
		out:   make(map[string]map[string]struct{}),
		in:    make(map[string]map[string]struct{}),
	}
}

// AddNode registers p if not already present. Idempotent.
func (g *Graph) AddNode(p *TaskProxy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(p)
}

func (g *Graph) addNodeLocked(p *TaskProxy) {
	if _, ok := g.nodes[p.qualifiedName]; ok {
		return
	}
	g.nodes[p.qualifiedName] = p
	g.out[p.qualifiedName] = make(map[string]struct{})
	g.in[p.qualifiedName] = make(map[string]struct{})
}

// AddEdge records that from depends on to, registering either endpoint that
// is not yet in the graph.
func (g *Graph) AddEdge(from, to *TaskProxy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(from)
	g.addNodeLocked(to)
	g.out[from.qualifiedName][to.qualifiedName] = struct{}{}
	g.in[to.qualifiedName][from.qualifiedName] = struct{}{}
}

// Node looks up a registered proxy by qualified name.
func (g *Graph) Node(qualifiedName string) (*TaskProxy, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.nodes[qualifiedName]
	return p, ok
}

// AllNodes returns every registered proxy, order unspecified.
func (g *Graph) AllNodes() []*TaskProxy {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*TaskProxy, 0, len(g.nodes))
	for _, p := range g.nodes {
		out = append(out, p)
	}
	return out
}

// RemoveNode deletes p and all edges touching it.
func (g *Graph) RemoveNode(p *TaskProxy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeNodeLocked(p.qualifiedName)
}

func (g *Graph) removeNodeLocked(qn string) {
	for dep := range g.out[qn] {
		delete(g.in[dep], qn)
	}
	for dependent := range g.in[qn] {
		delete(g.out[dependent], qn)
	}
	delete(g.out, qn)
	delete(g.in, qn)
	delete(g.nodes, qn)
}

// IsLeaf reports whether p has no remaining outgoing edges, i.e. every
// dependency it had has already been removed from the graph (completed).
func (g *Graph) IsLeaf(p *TaskProxy) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.out[p.qualifiedName]) == 0
}

// IsRoot reports whether nothing depends on p.
func (g *Graph) IsRoot(p *TaskProxy) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.in[p.qualifiedName]) == 0
}

// AreNeighbors reports whether there is a direct edge between u and v in
// either direction.
func (g *Graph) AreNeighbors(u, v *TaskProxy) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.out[u.qualifiedName][v.qualifiedName]; ok {
		return true
	}
	_, ok := g.out[v.qualifiedName][u.qualifiedName]
	return ok
}

// Leaves returns every node with no remaining outgoing edges: the set of
// tasks ready to run right now, modulo in-progress/extension filtering done
// by TaskProxy.IsReady.
func (g *Graph) Leaves() []*TaskProxy {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*TaskProxy
	for qn, deps := range g.out {
		if len(deps) == 0 {
			out = append(out, g.nodes[qn])
		}
	}
	return out
}

// Descendants returns every node reachable from p by following dependency
// edges (p's transitive dependency set), not including p itself.
func (g *Graph) Descendants(p *TaskProxy) []*TaskProxy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reachable(p.qualifiedName, g.out)
}

// Ancestors returns every node that transitively depends on p, not including
// p itself.
func (g *Graph) Ancestors(p *TaskProxy) []*TaskProxy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reachable(p.qualifiedName, g.in)
}

func (g *Graph) reachable(start string, edges map[string]map[string]struct{}) []*TaskProxy {
	seen := map[string]struct{}{start: {}}
	stack := []string{start}
	var out []*TaskProxy
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range edges[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			out = append(out, g.nodes[next])
			stack = append(stack, next)
		}
	}
	return out
}

// Select returns every node for which pred holds.
func (g *Graph) Select(pred func(*TaskProxy) bool) []*TaskProxy {
	g.mu.Lock()
	nodes := make([]*TaskProxy, 0, len(g.nodes))
	for _, p := range g.nodes {
		nodes = append(nodes, p)
	}
	g.mu.Unlock()

	var out []*TaskProxy
	for _, p := range nodes {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// Prune removes every node for which pred holds, snapshotting the node set
// first so pred observes a consistent graph while nodes are removed.
func (g *Graph) Prune(pred func(*TaskProxy) bool) {
	matches := g.Select(pred)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range matches {
		g.removeNodeLocked(p.qualifiedName)
	}
}

// TrySetInProgress atomically checks that p is ready (per IsReady) and, if
// so, marks it in_progress and returns true. Guarded by the same mutex as
// RemoveNode and leaf enumeration, so a task can never be claimed twice and
// never claimed while its last dependency is mid-removal.
func (g *Graph) TrySetInProgress(p *TaskProxy) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inProgress || p.completed || p.failed || p.cancelled || p.IsExtension() {
		return false
	}
	if len(g.out[p.qualifiedName]) != 0 {
		return false
	}
	p.inProgress = true
	return true
}

// MarkCompleted records p's successful completion and removes it from the
// graph, shrinking its ancestors' outstanding dependency counts.
func (g *Graph) MarkCompleted(p *TaskProxy, d time.Duration) {
	g.markCompleted(p, d, false)
}

// MarkCompletedCached is MarkCompleted for a task whose artifact was served
// from the cache instead of actually running.
func (g *Graph) MarkCompletedCached(p *TaskProxy, d time.Duration) {
	g.markCompleted(p, d, true)
}

func (g *Graph) markCompleted(p *TaskProxy, d time.Duration, cached bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p.mu.Lock()
	p.inProgress = false
	p.completed = true
	p.cached = cached
	p.duration = d
	p.mu.Unlock()

	g.removeNodeLocked(p.qualifiedName)
}

// MarkFailed records p's failure, cancels every ancestor of p (they can never
// run now that a dependency failed), and removes all of them from the graph.
func (g *Graph) MarkFailed(p *TaskProxy, d time.Duration) {
	g.mu.Lock()

	p.mu.Lock()
	p.inProgress = false
	p.failed = true
	p.duration = d
	p.mu.Unlock()

	ancestors := g.reachable(p.qualifiedName, g.in)
	g.removeNodeLocked(p.qualifiedName)
	for _, a := range ancestors {
		a.mu.Lock()
		a.cancelled = true
		a.mu.Unlock()
		g.removeNodeLocked(a.qualifiedName)
	}

	g.mu.Unlock()
}

// DetectCycle runs a three-color DFS over dependency edges. It returns
// (true, nil) for an acyclic graph, or (false, witness) naming a cycle as a
// sequence of qualified names, first and last equal.
func (g *Graph) DetectCycle() (bool, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.nodes))
	for qn := range g.nodes {
		color[qn] = white
	}

	var path []string
	var witness []string

	var visit func(qn string) bool
	visit = func(qn string) bool {
		color[qn] = gray
		path = append(path, qn)

		deps := make([]string, 0, len(g.out[qn]))
		for d := range g.out[qn] {
			deps = append(deps, d)
		}
		sort.Strings(deps)

		for _, d := range deps {
			switch color[d] {
			case white:
				if visit(d) {
					return true
				}
			case gray:
				start := 0
				for i, n := range path {
					if n == d {
						start = i
						break
					}
				}
				witness = append(append([]string(nil), path[start:]...), d)
				return true
			}
		}

		color[qn] = black
		path = path[:len(path)-1]
		return false
	}

	names := make([]string, 0, len(g.nodes))
	for qn := range g.nodes {
		names = append(names, qn)
	}
	sort.Strings(names)

	for _, qn := range names {
		if color[qn] == white {
			if visit(qn) {
				return false, witness
			}
		}
	}
	return true, nil
}
