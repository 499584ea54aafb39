package task

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/tools"
)

// FuncTask is a Task implementation driven by plain fields and optional
// closures, used by tests and the fixture loader below to build small DAGs
// without hand-writing a Task type per scenario.
type FuncTask struct {
	TaskName       string
	TaskParameters Parameters
	RequiresNames  []string
	ExtendsName    string
	IsCacheable    bool
	IsResource     bool
	Providers      []influence.Provider

	RunFunc     func(ctx context.Context, ws *cache.Workspace, t *tools.Tools) error
	PublishFunc func(ctx context.Context, artifact *cache.Artifact, t *tools.Tools) error
}

// Name implements Task.
func (f *FuncTask) Name() string { return f.TaskName }

// Parameters implements Task.
func (f *FuncTask) Parameters() Parameters { return f.TaskParameters }

// Requires implements Task.
func (f *FuncTask) Requires() []string { return f.RequiresNames }

// Extends implements Task.
func (f *FuncTask) Extends() string { return f.ExtendsName }

// Cacheable implements Task.
func (f *FuncTask) Cacheable() bool { return f.IsCacheable }

// Resource implements Task.
func (f *FuncTask) Resource() bool { return f.IsResource }

// Influence implements Task.
func (f *FuncTask) Influence() []influence.Provider { return f.Providers }

// Run implements Task, delegating to RunFunc if set.
func (f *FuncTask) Run(ctx context.Context, ws *cache.Workspace, t *tools.Tools) error {
	if f.RunFunc == nil {
		return nil
	}
	return f.RunFunc(ctx, ws, t)
}

// Publish implements Task, delegating to PublishFunc if set.
func (f *FuncTask) Publish(ctx context.Context, artifact *cache.Artifact, t *tools.Tools) error {
	if f.PublishFunc == nil {
		return nil
	}
	return f.PublishFunc(ctx, artifact, t)
}

// manifestEntry is the YAML shape of one task declaration in a test fixture.
type manifestEntry struct {
	Name       string            `yaml:"name"`
	Parameters map[string]string `yaml:"parameters"`
	Requires   []string          `yaml:"requires"`
	Extends    string            `yaml:"extends"`
	Cacheable  bool              `yaml:"cacheable"`
	Resource   bool              `yaml:"resource"`
}

// LoadManifest parses a YAML list of task declarations and registers a
// FuncTask for each into reg, keyed by its qualified name. Tests use it as a
// fixture loader and the CLI uses it to read --manifest. The registered
// tasks' run/publish are no-ops: a manifest declares graph shape only, not
// build side effects.
func LoadManifest(reg *MapRegistry, doc []byte) error {
	var entries []manifestEntry
	if err := yaml.Unmarshal(doc, &entries); err != nil {
		return err
	}

	for _, e := range entries {
		qn := QualifiedName(e.Name, e.Parameters)
		reg.Register(qn, &FuncTask{
			TaskName:       e.Name,
			TaskParameters: e.Parameters,
			RequiresNames:  e.Requires,
			ExtendsName:    e.Extends,
			IsCacheable:    e.Cacheable,
			IsResource:     e.Resource,
		})
	}
	return nil
}
