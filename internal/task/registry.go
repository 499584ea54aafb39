package task

import "sync"

// MapRegistry is an in-memory Registry backed by a map, grounded on the
// plugin registry pattern of guarding a map with a single RWMutex. Useful for
// tests, the demo CLI, and as the seam a future DSL front-end would populate.
type MapRegistry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMapRegistry creates an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{tasks: make(map[string]Task)}
}

// Register associates qualifiedName with t, replacing any existing entry.
func (m *MapRegistry) Register(qualifiedName string, t Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[qualifiedName] = t
}

// GetTask implements Registry.
func (m *MapRegistry) GetTask(qualifiedName string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[qualifiedName]
	if !ok {
		return nil, &ErrNotFound{QualifiedName: qualifiedName}
	}
	return t, nil
}
