package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apprun "github.com/alexisbeaulieu97/monorun/internal/app/run"
	"github.com/alexisbeaulieu97/monorun/internal/engine"
)

type listOptions struct {
	jsonOutput bool
}

func newListCmd(root *rootFlags) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every resolved step:service node and its dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runList(cmd *cobra.Command, root *rootFlags, opts *listOptions) error {
	log, err := root.logger(cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, graph, err := apprun.NewService(apprun.Options{Logger: log}).Load(ctx, root.projectDir)
	if err != nil {
		return err
	}

	nodes := make([]listJSONNode, 0, len(graph.Nodes))
	for _, id := range graph.IDs() {
		nodes = append(nodes, toListNode(graph.Nodes[id]))
	}

	if opts.jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(listJSONPayload{Count: len(nodes), Nodes: nodes})
	}

	if len(nodes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No services found.")
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NODE\tON CHANGED\tDEPENDS ON")
	for _, n := range nodes {
		deps := "-"
		if len(n.DependsOn) > 0 {
			deps = strings.Join(n.DependsOn, ", ")
		}
		policy := n.OnChanged
		if n.SkipRun {
			policy += " (skip_run)"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", n.ID, policy, deps)
	}
	return writer.Flush()
}

type listJSONNode struct {
	ID        string   `json:"id"`
	Step      string   `json:"step"`
	Service   string   `json:"service"`
	OnChanged string   `json:"on_changed"`
	SkipRun   bool     `json:"skip_run"`
	DependsOn []string `json:"depends_on"`
}

type listJSONPayload struct {
	Count int            `json:"count"`
	Nodes []listJSONNode `json:"nodes"`
}

func toListNode(n *engine.Node) listJSONNode {
	deps := make([]string, 0, len(n.DependsOn))
	for _, dep := range n.DependsOn {
		deps = append(deps, dep.ID)
	}
	return listJSONNode{
		ID:        n.ID,
		Step:      n.Step.Step,
		Service:   n.Step.Service,
		OnChanged: n.Step.OnChanged.String(),
		SkipRun:   n.Step.SkipRun,
		DependsOn: deps,
	}
}
