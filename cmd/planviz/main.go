// Package main provides planviz, a small CLI for building a toy execution
// plan over an in-process graph and inspecting/profiling it — exercising
// pkg/plan, pkg/pending, and pkg/schema end to end.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/nornicdb/pkg/attrs"
	"github.com/orneryd/nornicdb/pkg/pending"
	"github.com/orneryd/nornicdb/pkg/plan"
	"github.com/orneryd/nornicdb/pkg/schema"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "planviz",
		Short: "Inspect and profile toy execution plans over an in-memory graph",
	}
	rootCmd.AddCommand(newCreateCmd())
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCreateCmd() *cobra.Command {
	var label, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a one-node CREATE plan, run it, and dump the profiled tree as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := schema.NewRegistry()
			hub := schema.NewHub()
			qc := schema.NewCtx(registry)

			root := &createOp{OperatorBase: plan.NewOperatorBase(plan.KindCreate, "Create"), hub: hub, qc: qc, label: label, name: name}
			p := plan.NewExecutionPlan()
			p.SetRoot(root)

			if _, err := plan.Profile(context.Background(), root); err != nil {
				return fmt.Errorf("planviz: %w", err)
			}

			out, err := p.DumpYAML()
			if err != nil {
				return fmt.Errorf("planviz: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "Person", "node label to create")
	cmd.Flags().StringVar(&name, "name", "Ada", "value for the node's name property")
	return cmd
}

// createOp is the single-node writer used by the `create` subcommand: it
// stages exactly one node blueprint and commits it on the first Consume
// call.
type createOp struct {
	*plan.OperatorBase
	hub   *schema.Hub
	qc    *schema.Ctx
	label string
	name  string
	done  bool
}

func (c *createOp) Init() error { return nil }

func (c *createOp) Consume() (*plan.Record, error) {
	if c.done {
		return nil, nil
	}
	c.done = true

	props, err := (&attrs.Set{}).Add(attrs.AttrID("name"), attrs.Value{Kind: attrs.KindString, Str: c.name})
	if err != nil {
		return nil, err
	}

	p := pending.NewPendingCreationsContainer()
	p.AddNode(pending.NodeBlueprint{Labels: []string{c.label}, Properties: props})
	if err := pending.Commit(c.qc, c.hub, p); err != nil {
		return nil, err
	}

	return c.Plan().CreateRecord(), nil
}

func (c *createOp) Reset() error { c.done = false; return nil }

func (c *createOp) Clone(newPlan *plan.ExecutionPlan) plan.Operator {
	return &createOp{OperatorBase: plan.NewOperatorBase(c.Kind(), c.Name()), hub: c.hub, qc: c.qc, label: c.label, name: c.name}
}

func (c *createOp) Free() {}

func (c *createOp) String() string { return fmt.Sprintf("Create | label=%s", c.label) }
