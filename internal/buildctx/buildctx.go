// Package buildctx assembles the explicit value object threaded through
// graph construction and execution: the task registry, influence registry,
// artifact cache, logger, and run options, replacing the module-level
// globals the original implementation relied on.
package buildctx

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/trellixvulnteam/jolt/internal/cache"
	"github.com/trellixvulnteam/jolt/internal/cache/local"
	"github.com/trellixvulnteam/jolt/internal/cache/remote"
	"github.com/trellixvulnteam/jolt/internal/cache/tiered"
	"github.com/trellixvulnteam/jolt/internal/influence"
	"github.com/trellixvulnteam/jolt/internal/logger"
	"github.com/trellixvulnteam/jolt/internal/task"
)

// Options configures a Session. Validated with go-playground/validator so a
// misconfigured build fails fast with a readable message rather than a
// confusing error partway through execution.
type Options struct {
	// CacheRoot is the local artifact cache directory.
	CacheRoot string `validate:"required"`
	// WorkDir roots each task's scoped working directory.
	WorkDir string `validate:"required"`
	// Parallelism bounds concurrent task execution.
	Parallelism int `validate:"required,min=1,max=256"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `validate:"omitempty,oneof=debug info warn error"`
	// HumanReadableLogs selects text output instead of JSON.
	HumanReadableLogs bool

	// RemoteBucket, when non-empty, enables the S3-backed remote cache tier.
	RemoteBucket string
	RemoteRegion string `validate:"required_with=RemoteBucket"`
	RemotePrefix string

	// Network allows the remote cache tier to be consulted and written to.
	Network bool
	// ForceBuild skips the cache lookup entirely.
	ForceBuild bool
	// ForceUpload re-uploads to the remote tier even if already present.
	ForceUpload bool
}

var validate = validator.New()

// Session is the per-build value object: everything graph construction and
// execution need, resolved once at startup.
type Session struct {
	Tasks      task.Registry
	Influences *influence.Registry
	Cache      cache.ArtifactCache
	Logger     *logger.Logger
	Options    Options
}

// NewSession validates opts and wires a Session around registry. influences
// may be nil, in which case a Registry seeded with the baseline parameter
// provider is created.
func NewSession(ctx context.Context, registry task.Registry, influences *influence.Registry, opts Options) (*Session, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("buildctx: invalid options: %w", err)
	}

	if influences == nil {
		influences = influence.NewRegistry()
		influences.RegisterGlobal(influence.ParameterInfluence{})
	}

	log, err := logger.New(logger.Options{
		Level:         opts.LogLevel,
		HumanReadable: opts.HumanReadableLogs,
		Component:     "jolt",
	})
	if err != nil {
		return nil, fmt.Errorf("buildctx: create logger: %w", err)
	}

	localStore, err := local.New(opts.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("buildctx: create local cache: %w", err)
	}

	var remoteStore cache.Store
	if opts.RemoteBucket != "" {
		remoteStore, err = remote.New(ctx, remote.Options{
			Bucket: opts.RemoteBucket,
			Region: opts.RemoteRegion,
			Prefix: opts.RemotePrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("buildctx: create remote cache: %w", err)
		}
	}

	artifactCache, err := tiered.New(localStore, remoteStore)
	if err != nil {
		return nil, fmt.Errorf("buildctx: create tiered cache: %w", err)
	}

	return &Session{
		Tasks:      registry,
		Influences: influences,
		Cache:      artifactCache,
		Logger:     log,
		Options:    opts,
	}, nil
}
