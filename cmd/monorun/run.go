package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	apprun "github.com/alexisbeaulieu97/monorun/internal/app/run"
	"github.com/alexisbeaulieu97/monorun/internal/model"
	"github.com/alexisbeaulieu97/monorun/internal/tui"
)

type runOptions struct {
	selection      selectionFlags
	nonInteractive bool
}

var runCmdRunner = runRun

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Run selected step:service nodes",
		Long: "Run executes the selected nodes concurrently. Targets are <step>:<service>\n" +
			"identifiers or service names; --changed-since adds every changed service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.selection.request(root, args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("no-tui") {
				opts.nonInteractive = !isTerminal(cmd.OutOrStdout())
			}
			return runCmdRunner(cmd, root, req, opts.nonInteractive)
		},
	}

	opts.selection.bind(cmd)
	cmd.Flags().BoolVar(&opts.nonInteractive, "no-tui", false, "Print a plain report instead of the interactive view")

	return cmd
}

func runRun(cmd *cobra.Command, root *rootFlags, req apprun.Request, nonInteractive bool) error {
	interactive := !nonInteractive

	log, err := root.logger(cmd.ErrOrStderr(), interactive)
	if err != nil {
		return err
	}

	var scriptOutput io.Writer
	if !interactive {
		scriptOutput = cmd.OutOrStdout()
	}
	svc := apprun.NewService(apprun.Options{Logger: log, Output: scriptOutput})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prepared, err := svc.Prepare(ctx, req)
	if err != nil {
		return err
	}
	if prepared.Set.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to run.")
		return nil
	}

	state := tui.NewModel(prepared.Project.Config.Name, prepared.Plan, cancel)

	var result *model.RunResult
	if interactive {
		program := tea.NewProgram(state, tea.WithOutput(cmd.OutOrStdout()))
		unsubscribe := tui.Forward(svc.Bus(), program.Send)

		var programErr error
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, programErr = program.Run()
		}()

		result, err = svc.Execute(ctx, prepared, req.Isolation)
		unsubscribe()
		program.Send(tea.QuitMsg{})
		<-done
		if err != nil {
			return err
		}
		if programErr != nil {
			return programErr
		}
	} else {
		recorder := tui.NewRecorder(state)
		unsubscribe := tui.Forward(svc.Bus(), recorder.Send)
		result, err = svc.Execute(ctx, prepared, req.Isolation)
		unsubscribe()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), recorder.Model().View())
	}

	return runError(result)
}

// runFailedError is returned when at least one node did not succeed.
type runFailedError struct {
	failed    []string
	skipped   []string
	cancelled []string
}

func (e *runFailedError) Error() string {
	var b strings.Builder
	b.WriteString("run failed")
	if len(e.failed) > 0 {
		fmt.Fprintf(&b, "\nfailed: %s", strings.Join(e.failed, ", "))
	}
	if len(e.skipped) > 0 {
		fmt.Fprintf(&b, "\nskipped: %s", strings.Join(e.skipped, ", "))
	}
	if len(e.cancelled) > 0 {
		fmt.Fprintf(&b, "\ncancelled: %s", strings.Join(e.cancelled, ", "))
	}
	return b.String()
}

func runError(result *model.RunResult) error {
	if result == nil || result.Success {
		return nil
	}
	return &runFailedError{
		failed:    result.Failed(),
		skipped:   result.Skipped(),
		cancelled: result.Cancelled(),
	}
}
