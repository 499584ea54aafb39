package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/trellixvulnteam/jolt/internal/executor"
	"github.com/trellixvulnteam/jolt/internal/tui"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task...>",
		Short: "Build the named tasks with a live progress view",
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

			names := make([]string, 0)
			for _, p := range g.AllNodes() {
				names = append(names, p.QualifiedName())
			}

			model := tui.NewModel(names)
			program := tea.NewProgram(model)

			opts := executor.Options{
				Parallelism: session.Options.Parallelism,
				ForceBuild:  session.Options.ForceBuild,
				ForceUpload: session.Options.ForceUpload,
				Network:     session.Options.Network,
				WorkDir:     session.Options.WorkDir,
				OnEvent:     forward(program),
			}
			exec := executor.New(g, session.Cache, session.Logger, opts)

			var report *executor.Report
			var runErr error
			done := make(chan struct{})
			go func() {
				defer close(done)
				report, runErr = exec.Run(ctx)
				program.Send(tea.Quit())
			}()

			if _, err := program.Run(); err != nil {
				return fmt.Errorf("progress view: %w", err)
			}
			<-done

			if runErr != nil {
				return runErr
			}
			if report.AnyFailed() {
				return fmt.Errorf("build failed")
			}
			return nil
		},
	}
}

func forward(program *tea.Program) func(any) {
	return func(event any) {
		switch e := event.(type) {
		case executor.StartEvent:
			program.Send(tui.StartMsg{QualifiedName: e.QualifiedName})
		case executor.DoneEvent:
			program.Send(tui.DoneMsg{QualifiedName: e.QualifiedName, Cached: e.Cached, Duration: e.Duration})
		case executor.FailedEvent:
			program.Send(tui.FailedMsg{QualifiedName: e.QualifiedName, Err: e.Err, Duration: e.Duration})
		case executor.CancelledEvent:
			program.Send(tui.CancelledMsg{QualifiedName: e.QualifiedName})
		}
	}
}
