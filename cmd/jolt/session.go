package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trellixvulnteam/jolt/internal/builder"
	"github.com/trellixvulnteam/jolt/internal/buildctx"
	"github.com/trellixvulnteam/jolt/internal/executor"
	"github.com/trellixvulnteam/jolt/internal/graph"
	"github.com/trellixvulnteam/jolt/internal/task"
)

// newSession loads the manifest into a task registry and wires a
// buildctx.Session from the root command's flags.
func newSession(ctx context.Context, flags *rootFlags) (*buildctx.Session, error) {
	if flags.manifest == "" {
		return nil, fmt.Errorf("--manifest is required")
	}

	doc, err := os.ReadFile(flags.manifest)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	registry := task.NewMapRegistry()
	if err := task.LoadManifest(registry, doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	level := "info"
	if flags.verbose {
		level = "debug"
	}

	return buildctx.NewSession(ctx, registry, nil, buildctx.Options{
		CacheRoot:         flags.cacheDir,
		WorkDir:           flags.workDir,
		Parallelism:       flags.parallelism,
		LogLevel:          level,
		HumanReadableLogs: flags.verbose,
		RemoteBucket:      flags.remoteBucket,
		RemoteRegion:      flags.remoteRegion,
		RemotePrefix:      flags.remotePrefix,
		Network:           flags.network,
		ForceBuild:        flags.forceBuild,
		ForceUpload:       flags.forceUpload,
	})
}

// buildGraph resolves names against session's task registry into a graph.
func buildGraph(session *buildctx.Session, names []string) (*graph.Graph, []*graph.TaskProxy, error) {
	b := builder.New(session.Tasks, session.Influences)
	return b.Build(names)
}

// newExecutor wires an executor.Executor from session.
func newExecutor(g *graph.Graph, session *buildctx.Session) *executor.Executor {
	return executor.New(g, session.Cache, session.Logger, executor.Options{
		Parallelism: session.Options.Parallelism,
		ForceBuild:  session.Options.ForceBuild,
		ForceUpload: session.Options.ForceUpload,
		Network:     session.Options.Network,
		WorkDir:     session.Options.WorkDir,
	})
}
