package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/varlens/internal/inspect"
	"github.com/dshills/varlens/internal/value"
	"github.com/dshills/varlens/internal/visualize"
)

func newVisualizeCmd(opts *options) *cobra.Command {
	var (
		query  visualize.Query
		vquery visualize.VariableQuery
	)
	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Emit a graph of linked structures or selected variables as JSON",
		Long: `With --struct, walk every global (and the --frame locals) breadth-first
through the --points fields and emit each reachable struct once, showing its
--values fields. With --struct-vars or --point-vars, emit the named variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			structural := query.Struct != ""
			if !structural && len(vquery.StructVars) == 0 && len(vquery.PointVars) == 0 {
				return fmt.Errorf("visualize needs --struct or --struct-vars/--point-vars")
			}
			t, err := opts.openTarget(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			roots, err := t.roots(cmd.Context(), opts.frame)
			if err != nil {
				return err
			}

			var graph any
			if structural {
				if graph, err = visualize.Structural(roots, query); err != nil {
					return err
				}
			} else {
				graph = visualize.Variables(roots, vquery)
			}
			data, err := json.MarshalIndent(graph, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&query.Struct, "struct", "", "struct type drawn as graph nodes")
	f.StringSliceVar(&query.Values, "values", nil, "data fields shown in each node")
	f.StringSliceVar(&query.Points, "points", nil, "pointer fields followed between nodes")
	f.StringSliceVar(&vquery.StructVars, "struct-vars", nil, "variables expanded one level")
	f.StringSliceVar(&vquery.PointVars, "point-vars", nil, "variables reported as pointers or indexes")
	return cmd
}

// roots materializes every global and, with a frame, every local of it.
func (t *target) roots(ctx context.Context, spec string) ([]*value.Value, error) {
	frame, err := t.frame(spec)
	if err != nil {
		return nil, err
	}
	var roots []*value.Value
	for _, sym := range t.registry.Globals() {
		v, err := t.session.InspectValue(ctx, inspect.Request{Symbol: sym.QualifiedName()})
		if err != nil {
			return nil, err
		}
		roots = append(roots, v)
	}
	if frame == nil {
		return roots, nil
	}
	for _, sym := range t.registry.Locals(frame.Function) {
		v, err := t.session.InspectValue(ctx, inspect.Request{Symbol: sym.Name, Frame: frame})
		if err != nil {
			return nil, err
		}
		roots = append(roots, v)
	}
	return roots, nil
}
