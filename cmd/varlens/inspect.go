package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/varlens/internal/inspect"
	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/render"
)

func newInspectCmd(opts *options) *cobra.Command {
	var (
		typeName string
		address  string
	)
	cmd := &cobra.Command{
		Use:   "inspect [expression...]",
		Short: "Render variables or expressions",
		Long: `Render each expression: a variable name, a qualified name such as
"main::count", or a path through members, indexes and pointers such as
"head->next->value" or "matrix[1][2]". With --address and --type, render raw
memory instead. With --type and a plain variable, reinterpret its storage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address == "" && len(args) == 0 {
				return fmt.Errorf("inspect needs an expression or --address")
			}
			t, err := opts.openTarget(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			frame, err := t.frame(opts.frame)
			if err != nil {
				return err
			}

			if address != "" {
				addr, err := strconv.ParseUint(address, 0, 64)
				if err != nil {
					return fmt.Errorf("invalid address %q", address)
				}
				n, err := t.session.Inspect(cmd.Context(), inspect.Request{
					Address: memory.Address(addr),
					Type:    typeName,
				})
				if err != nil {
					return err
				}
				return opts.writeNode(cmd.OutOrStdout(), n)
			}

			for _, expr := range args {
				var n *render.Node
				if typeName != "" {
					n, err = t.session.Inspect(cmd.Context(), inspect.Request{Symbol: expr, Type: typeName, Frame: frame})
				} else {
					n, err = t.session.Evaluate(cmd.Context(), expr, frame)
				}
				if err != nil {
					return err
				}
				if err := opts.writeNode(cmd.OutOrStdout(), n); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "type expression to render as, e.g. \"Node *\"")
	cmd.Flags().StringVarP(&address, "address", "a", "", "render memory at this address (needs --type)")
	return cmd
}

func newGlobalsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "globals",
		Short: "Render every global and static local variable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := opts.openTarget(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			nodes, err := t.session.Globals(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range nodes {
				if err := opts.writeNode(cmd.OutOrStdout(), n); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newLocalsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "locals",
		Short: "Render the stack locals of the --frame function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := opts.openTarget(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			if opts.frame == "" {
				if len(t.frames) == 0 {
					return fmt.Errorf("locals needs --frame")
				}
				opts.frame = t.frames[0].Function
			}
			frame, err := t.frame(opts.frame)
			if err != nil {
				return err
			}
			nodes, err := t.session.Locals(cmd.Context(), *frame)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				if err := opts.writeNode(cmd.OutOrStdout(), n); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch expression...",
		Short: "Evaluate a list of watch expressions",
		Long:  "Evaluate every expression; a failing expression reports its error and does not stop the others.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.openTarget(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			for _, expr := range args {
				if err := t.session.AddWatch(expr); err != nil {
					return err
				}
			}
			frame, err := t.frame(opts.frame)
			if err != nil {
				return err
			}
			results, err := t.session.EvaluateWatches(cmd.Context(), frame)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, r := range results {
				if r.Err != nil {
					fmt.Fprintf(out, "#%d %s: error: %v\n", i, r.Expression, r.Err)
					continue
				}
				fmt.Fprintf(out, "#%d ", i)
				if err := opts.writeNode(out, r.Node); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
