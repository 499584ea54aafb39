package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	manifest    string
	cacheDir    string
	workDir     string
	parallelism int
	verbose     bool

	remoteBucket string
	remoteRegion string
	remotePrefix string
	network      bool

	forceBuild  bool
	forceUpload bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "jolt",
		Short:         "jolt builds tasks from a content-addressed dependency graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.manifest, "manifest", "", "YAML file declaring tasks (required)")
	cmd.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", ".jolt/cache", "local artifact cache directory")
	cmd.PersistentFlags().StringVar(&flags.workDir, "work-dir", ".jolt/work", "task scratch directory root")
	cmd.PersistentFlags().IntVar(&flags.parallelism, "parallelism", 4, "maximum concurrent tasks")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "human-readable, debug-level logs")

	cmd.PersistentFlags().StringVar(&flags.remoteBucket, "remote-bucket", "", "S3 bucket backing the remote cache tier")
	cmd.PersistentFlags().StringVar(&flags.remoteRegion, "remote-region", "", "region of --remote-bucket")
	cmd.PersistentFlags().StringVar(&flags.remotePrefix, "remote-prefix", "", "key prefix within --remote-bucket")
	cmd.PersistentFlags().BoolVar(&flags.network, "network", false, "allow remote cache lookups and uploads")

	cmd.PersistentFlags().BoolVar(&flags.forceBuild, "force-build", false, "skip the cache and rebuild everything requested")
	cmd.PersistentFlags().BoolVar(&flags.forceUpload, "force-upload", false, "re-upload to the remote tier even if already present")

	cmd.AddCommand(newBuildCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
