package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBuildCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "build <task...>",
		Short: "Build the named tasks and everything they require",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			session, err := newSession(ctx, flags)
			if err != nil {
				return err
			}

			g, _, err := buildGraph(session, args)
			if err != nil {
				return err
			}

			report, err := newExecutor(g, session).Run(ctx)
			if err != nil {
				return err
			}

			for _, o := range report.Outcomes {
				switch {
				case o.Failed:
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL      %s\n", o.QualifiedName)
				case o.Cancelled:
					fmt.Fprintf(cmd.OutOrStdout(), "CANCELLED %s\n", o.QualifiedName)
				case o.Completed && o.Cached:
					fmt.Fprintf(cmd.OutOrStdout(), "CACHED    %s\n", o.QualifiedName)
				case o.Completed:
					fmt.Fprintf(cmd.OutOrStdout(), "OK        %s (%s)\n", o.QualifiedName, o.Duration)
				}
			}

			if report.AnyFailed() {
				return fmt.Errorf("build failed")
			}
			return nil
		},
	}
}
