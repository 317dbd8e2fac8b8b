package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apprun "github.com/alexisbeaulieu97/monorun/internal/app/run"
	"github.com/alexisbeaulieu97/monorun/internal/logger"
)

func newPlanCmd(root *rootFlags) *cobra.Command {
	selection := &selectionFlags{}

	cmd := &cobra.Command{
		Use:   "plan [targets...]",
		Short: "Show what run would execute, grouped by dependency level",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := selection.request(root, args)
			if err != nil {
				return err
			}
			log, err := root.logger(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			return runPlan(cmd, log, req)
		},
	}

	selection.bind(cmd)
	return cmd
}

func runPlan(cmd *cobra.Command, log *logger.Logger, req apprun.Request) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	prepared, err := apprun.NewService(apprun.Options{Logger: log}).Prepare(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if req.ChangedSince != "" {
		changed := "none"
		if len(prepared.Changed) > 0 {
			changed = strings.Join(prepared.Changed, ", ")
		}
		fmt.Fprintf(out, "Changed since %s: %s\n", req.ChangedSince, changed)
	}
	if prepared.Set.Len() == 0 {
		fmt.Fprintln(out, "Nothing to run.")
		return nil
	}

	fmt.Fprintf(out, "%d nodes, %d workers\n", prepared.Plan.Len(), prepared.Workers)
	fmt.Fprint(out, prepared.Plan.String())
	return nil
}
