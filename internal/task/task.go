// Package task defines the external interface tasks implement: identity
// inputs (name, parameters, requirements), the opaque run/publish callables,
// and the registry that resolves a requirement name to a concrete Task.
package task

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/tools"
)

// Parameters is a task's parameterization, e.g. {"arch": "amd64"}. Two tasks
// with the same Name but different Parameters are distinct nodes in the
// graph with independent identities.
type Parameters map[string]string

// Task is the unit of work the build orchestrates. Implementations are
// provided by callers (a DSL front-end, a registry seeded from config, or
// code written directly against this package); the core never constructs a
// Task itself.
type Task interface {
	// Name is the unqualified task name, e.g. "compiler".
	Name() string
	// Parameters returns this instance's parameterization.
	Parameters() Parameters
	// Requires lists the qualified names of tasks this one depends on.
	Requires() []string
	// Extends names the qualified name of the task this one extends, or ""
	// if it is not an extension. An extension task is never independently
	// ready; it runs bundled with the task it extends.
	Extends() string
	// Cacheable reports whether completed runs may be stored in and served
	// from the artifact cache. Resource tasks are typically not cacheable.
	Cacheable() bool
	// Resource reports whether this task merely provides inputs (e.g. a
	// checked-out source tree) rather than producing a built artifact.
	// Resource tasks are pruned from the identity-relevant dependency set
	// of non-adjacent descendants.
	Resource() bool
	// Influence lists providers declared specifically for this task, applied
	// after global providers when computing identity.
	Influence() []influence.Provider
	// Run executes the task's build step. ws is the scoped build context
	// (scratch directory) the task may write into; t is the scoped tools
	// resource for subprocess invocation and working-directory management.
	Run(ctx context.Context, ws *cache.Workspace, t *tools.Tools) error
	// Publish copies the task's output into artifact for caching. Only
	// called when Cacheable reports true and Run succeeded.
	Publish(ctx context.Context, artifact *cache.Artifact, t *tools.Tools) error
}

// QualifiedName canonically serializes a task name and its parameters into
// the string used as a graph node key, e.g. "compiler:arch=amd64". Keys are
// sorted so declaration order never perturbs the qualified name.
func QualifiedName(name string, params Parameters) string {
	if len(params) == 0 {
		return name
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%s", k, params[k])
	}
	return b.String()
}

// Registry resolves a qualified task name to its Task implementation. The
// graph builder consults it once per distinct requirement encountered while
// walking the dependency graph.
type Registry interface {
	// GetTask returns the Task registered under qualifiedName, or an error
	// if no such task is registered.
	GetTask(qualifiedName string) (Task, error)
}

// ErrNotFound reports that a qualified name has no registered Task.
type ErrNotFound struct {
	QualifiedName string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("task: no task registered for %q", e.QualifiedName)
}
