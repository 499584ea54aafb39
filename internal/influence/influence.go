// Package influence computes the byte stream that feeds a task's identity
// hash: a deterministic, ordered combination of global providers (applied to
// every task) and per-task providers (declared by that task alone).
package influence

import (
	"fmt"
	"hash"
	"sort"
	"sync"
)

// Influenced is the minimal surface a provider needs from a task: its name
// and its canonical parameters. Defined here rather than imported from the
// task package so influence has no dependency on task, avoiding a cycle
// (task.Task depends on influence.Provider, not the other way around).
type Influenced interface {
	Name() string
	Parameters() map[string]string
}

// Provider contributes bytes to a task's identity hash. Implementations must
// be deterministic: the same task and environment always produce the same
// bytes, since identity is relied on for build-skip decisions.
type Provider interface {
	// Key names the provider for logging and registration-order diagnostics.
	Key() string
	// Apply writes this provider's contribution for t into h.
	Apply(t Influenced, h hash.Hash) error
}

// Registry holds an ordered list of global providers plus per-task provider
// lists, and applies both deterministically to a hash.Hash.
type Registry struct {
	mu       sync.Mutex
	global   []Provider
	perTask  map[string][]Provider // keyed by task name, not qualified name: declared at the task-type level
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{perTask: make(map[string][]Provider)}
}

// RegisterGlobal appends a provider applied to every task, in registration
// order. Order matters: it is part of what makes identity reproducible.
func (r *Registry) RegisterGlobal(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, p)
}

// Declare appends a provider applied only to tasks named taskName, in
// declaration order, after all global providers.
func (r *Registry) Declare(taskName string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perTask[taskName] = append(r.perTask[taskName], p)
}

// ApplyAll writes every applicable provider's contribution for t into h, in
// the order: global providers first (registration order), then this task's
// declared providers (declaration order). A provider error aborts immediately
// and is returned to the caller, who is expected to wrap it as an
// IdentityError.
func (r *Registry) ApplyAll(t Influenced, h hash.Hash) error {
	r.mu.Lock()
	global := append([]Provider(nil), r.global...)
	declared := append([]Provider(nil), r.perTask[t.Name()]...)
	r.mu.Unlock()

	for _, p := range global {
		if err := p.Apply(t, h); err != nil {
			return fmt.Errorf("influence: global provider %q: %w", p.Key(), err)
		}
	}
	for _, p := range declared {
		if err := p.Apply(t, h); err != nil {
			return fmt.Errorf("influence: provider %q for task %q: %w", p.Key(), t.Name(), err)
		}
	}
	return nil
}

// ParameterInfluence is the always-present baseline provider: a task's
// canonical parameter encoding is always part of its identity, independent of
// any declared provider. Callers normally register this once as a global
// provider when constructing a Registry.
type ParameterInfluence struct{}

// Key implements Provider.
func (ParameterInfluence) Key() string { return "parameters" }

// Apply writes t's parameters in sorted-key order so declaration order at the
// call site never perturbs identity.
func (ParameterInfluence) Apply(t Influenced, h hash.Hash) error {
	params := t.Parameters()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(h, "%s=%s\n", k, params[k]); err != nil {
			return err
		}
	}
	return nil
}
