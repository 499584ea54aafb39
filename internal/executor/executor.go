// Package executor runs a graph.Graph to completion: a bounded worker pool
// dynamically picks up newly-ready leaves as dependencies finish, skips
// tasks whose artifact is already cached, and cancels the ancestors of any
// task that fails.
package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/graph"
	"github.com/trellixvulnteam/jolt/internal/logger"
	"github.com/trellixvulnteam/jolt/internal/tools"
	"github.com/trellixvulnteam/jolt/pkg/jolterrors"
)

// Options configures an Executor.
type Options struct {
	// Parallelism bounds how many tasks run concurrently.
	Parallelism int
	// ForceBuild skips the cache lookup entirely, rebuilding every task.
	ForceBuild bool
	// ForceUpload re-uploads to the remote cache tier even if it already has
	// the artifact.
	ForceUpload bool
	// Network allows the remote cache tier to be consulted and written to.
	Network bool
	// WorkDir roots each task's scoped working directory.
	WorkDir string
	// OnEvent, if set, is called as tasks start and finish. Used to drive
	// the optional progress TUI; nil is a valid no-op observer.
	OnEvent func(event any)
}

func (o Options) notify(event any) {
	if o.OnEvent != nil {
		o.OnEvent(event)
	}
}

// Executor runs a graph.Graph to completion against an ArtifactCache.
type Executor struct {
	g     *graph.Graph
	c     cache.ArtifactCache
	log   *logger.Logger
	opts  Options
}

// New creates an Executor over g, using c as the artifact cache and log for
// structured progress output.
func New(g *graph.Graph, c cache.ArtifactCache, log *logger.Logger, opts Options) *Executor {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Executor{g: g, c: c, log: log, opts: opts}
}

// StartEvent reports that a task began running, for OnEvent observers.
type StartEvent struct{ QualifiedName string }

// DoneEvent reports that a task finished, successfully or served from cache.
type DoneEvent struct {
	QualifiedName string
	Cached        bool
	Duration      time.Duration
}

// FailedEvent reports that a task's run or publish callable returned an
// error.
type FailedEvent struct {
	QualifiedName string
	Err           error
	Duration      time.Duration
}

// CancelledEvent reports that a task was cancelled as an ancestor of a
// failure.
type CancelledEvent struct{ QualifiedName string }

// Outcome records the terminal state of one task proxy after Run returns.
type Outcome struct {
	QualifiedName string
	Completed     bool
	Cached        bool
	Failed        bool
	Cancelled     bool
	Duration      time.Duration
}

// Report summarizes every node that was in the graph when Run started.
type Report struct {
	Outcomes []Outcome
}

// AnyFailed reports whether the report contains a failed task.
func (r *Report) AnyFailed() bool {
	for _, o := range r.Outcomes {
		if o.Failed {
			return true
		}
	}
	return false
}

// Run schedules every task in the graph, dispatching newly-ready leaves as
// dependencies complete, until the graph is empty or ctx is cancelled.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	all := e.g.AllNodes()

	sem := make(chan struct{}, e.opts.Parallelism)
	done := make(chan struct{}, len(all)+1)
	var wg sync.WaitGroup

	dispatch := func(p *graph.TaskProxy) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.runProxy(ctx, p)
			done <- struct{}{}
		}()
	}

	scan := func() int {
		dispatched := 0
		for _, p := range e.g.Leaves() {
			if e.g.TrySetInProgress(p) {
				dispatched++
				dispatch(p)
			}
		}
		return dispatched
	}

	pending := scan()
	for pending > 0 {
		select {
		case <-ctx.Done():
			wg.Wait()
			return e.report(all), ctx.Err()
		case <-done:
			pending--
			pending += scan()
		}
	}
	wg.Wait()

	return e.report(all), nil
}

func (e *Executor) report(all []*graph.TaskProxy) *Report {
	r := &Report{Outcomes: make([]Outcome, 0, len(all))}
	for _, p := range all {
		r.Outcomes = append(r.Outcomes, Outcome{
			QualifiedName: p.QualifiedName(),
			Completed:     p.Completed(),
			Cached:        p.Cached(),
			Failed:        p.Failed(),
			Cancelled:     p.Cancelled(),
			Duration:      p.Duration(),
		})
	}
	return r
}

// runProxy executes the full lifecycle of one task: cache lookup, the build
// itself when not cached, publish, optional remote upload, and then each of
// p's extensions in declaration order. It always ends by marking p completed
// or failed on the graph, which is what lets the scheduler in Run discover
// newly-ready leaves.
func (e *Executor) runProxy(ctx context.Context, p *graph.TaskProxy) {
	start := time.Now()
	log := e.log.WithFields(map[string]any{"task": p.QualifiedName()})
	e.opts.notify(StartEvent{QualifiedName: p.QualifiedName()})

	complete := func(cached bool) {
		d := time.Since(start)
		if cached {
			e.g.MarkCompletedCached(p, d)
		} else {
			e.g.MarkCompleted(p, d)
		}
		e.opts.notify(DoneEvent{QualifiedName: p.QualifiedName(), Cached: cached, Duration: d})
	}
	fail := func(err error) {
		d := time.Since(start)
		e.g.MarkFailed(p, d)
		e.opts.notify(FailedEvent{QualifiedName: p.QualifiedName(), Err: err, Duration: d})
		for _, a := range p.Ancestors() {
			e.opts.notify(CancelledEvent{QualifiedName: a.QualifiedName()})
		}
	}

	if !e.opts.ForceBuild {
		if cached, ok := e.trySkip(ctx, p, log); ok {
			if cached {
				log.Info("skipped, found in cache")
				e.completeCachedExtensions(p)
			}
			complete(true)
			return
		}
	}

	if err := e.build(ctx, p, log); err != nil {
		fail(err)
		return
	}

	// Extensions run strictly after the host's primary publish/upload and
	// strictly before the host is marked finished, serially, in declaration
	// order. A failing extension fails the host's own run: it is driven
	// entirely by the host, so there is no other node whose failure could
	// express it.
	if err := e.runExtensions(ctx, p); err != nil {
		fail(err)
		return
	}

	complete(false)
}

// build runs p's task to completion against the cache: run, then (if
// cacheable) commit, publish, and optional remote upload. It never touches
// graph state — callers decide how to mark p finished. Used both for a
// host's own primary task and, via runExtensions, for each of its
// extensions: an extension's run is identical to a host's, just driven by
// the host instead of the scheduler.
func (e *Executor) build(ctx context.Context, p *graph.TaskProxy, log *logger.Logger) error {
	t, release, err := tools.Acquire(filepath.Join(e.opts.WorkDir, sanitize(p.QualifiedName())))
	if err != nil {
		log.Error(err, "failed to acquire tools")
		return err
	}
	defer release()

	ws, err := e.c.GetWorkspace(ctx, p)
	if err != nil {
		log.Error(err, "failed to allocate workspace")
		return err
	}

	if err := p.Task().Run(ctx, ws, t); err != nil {
		_ = ws.Discard()
		runErr := jolterrors.NewRunError(p.QualifiedName(), err)
		log.Error(runErr, "run failed")
		return runErr
	}

	if !p.Task().Cacheable() {
		_ = ws.Discard()
		log.Info("completed")
		return nil
	}

	artifact, err := ws.Commit()
	if err != nil {
		cacheErr := jolterrors.NewCacheError(p.QualifiedName(), "commit", true, err)
		log.Error(cacheErr, "failed to commit artifact")
		return cacheErr
	}

	if err := p.Task().Publish(ctx, artifact, t); err != nil {
		runErr := jolterrors.NewRunError(p.QualifiedName(), err)
		log.Error(runErr, "publish failed")
		return runErr
	}

	if e.opts.Network {
		if _, err := e.c.Upload(ctx, p, e.opts.ForceUpload); err != nil {
			cacheErr := jolterrors.NewCacheError(p.QualifiedName(), "upload", true, err)
			log.Error(cacheErr, "upload failed")
			return cacheErr
		}
	}

	log.Info("completed")
	return nil
}

// runExtensions runs host's extensions serially, in declaration order, each
// unconditionally rebuilt (an extension's run is never skipped via cache
// lookup; only the host's cached-skip path, via completeCachedExtensions,
// can finish an extension without running it). The first extension to fail
// stops the sequence and its error is returned for the host's own run to
// fail with.
func (e *Executor) runExtensions(ctx context.Context, host *graph.TaskProxy) error {
	for _, ext := range host.Extensions() {
		start := time.Now()
		log := e.log.WithFields(map[string]any{"task": ext.QualifiedName(), "host": host.QualifiedName()})
		e.opts.notify(StartEvent{QualifiedName: ext.QualifiedName()})

		if err := e.build(ctx, ext, log); err != nil {
			d := time.Since(start)
			e.g.MarkFailed(ext, d)
			e.opts.notify(FailedEvent{QualifiedName: ext.QualifiedName(), Err: err, Duration: d})
			return err
		}

		// An extension may itself have extensions; run recurses so they run
		// before ext is marked finished, same as for a top-level host.
		if err := e.runExtensions(ctx, ext); err != nil {
			d := time.Since(start)
			e.g.MarkFailed(ext, d)
			e.opts.notify(FailedEvent{QualifiedName: ext.QualifiedName(), Err: err, Duration: d})
			return err
		}

		d := time.Since(start)
		e.g.MarkCompleted(ext, d)
		e.opts.notify(DoneEvent{QualifiedName: ext.QualifiedName(), Cached: false, Duration: d})
	}
	return nil
}

// completeCachedExtensions marks every extension of host completed-from-cache
// without running them: trySkip already confirmed (and downloaded, if
// needed) every extension's artifact is available whenever it reports host
// itself as skippable, per TaskProxy.IsCached.
func (e *Executor) completeCachedExtensions(host *graph.TaskProxy) {
	for _, ext := range host.Extensions() {
		e.opts.notify(StartEvent{QualifiedName: ext.QualifiedName()})
		e.g.MarkCompletedCached(ext, 0)
		e.opts.notify(DoneEvent{QualifiedName: ext.QualifiedName(), Cached: true})
	}
}

// trySkip reports whether p (and all of its extensions) is already cached,
// downloading from the remote tier first if needed. The second return value
// is true when the caller should treat p as finished without running it;
// the first is true specifically when that finish came from the cache
// (as opposed to some other already-finished state).
func (e *Executor) trySkip(ctx context.Context, p *graph.TaskProxy, log *logger.Logger) (cached bool, skip bool) {
	ok, err := p.IsCached(ctx, e.c, e.opts.Network)
	if err != nil {
		log.Warn(fmt.Sprintf("cache lookup failed, building instead: %v", err))
		return false, false
	}
	if !ok {
		return false, false
	}

	for _, k := range append([]*graph.TaskProxy{p}, p.Extensions()...) {
		if !k.Task().Cacheable() {
			continue
		}
		local, err := e.c.IsAvailableLocally(ctx, k)
		if err != nil {
			log.Warn(fmt.Sprintf("local cache check failed, building instead: %v", err))
			return false, false
		}
		if local {
			continue
		}
		if err := e.c.Download(ctx, k); err != nil {
			log.Warn(fmt.Sprintf("download failed, building instead: %v", err))
			return false, false
		}
	}

	return true, true
}

func sanitize(qualifiedName string) string {
	return strings.NewReplacer(":", "_", "/", "_", ",", "_").Replace(qualifiedName)
}
