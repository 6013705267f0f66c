package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/varlens/internal/config"
	"github.com/dshills/varlens/internal/typeinfo"
)

func newTypesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "types [type-expression...]",
		Short: "List known types or show the layout of type expressions",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.openTarget(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range t.registry.Types() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			for _, expr := range args {
				typ, err := t.registry.Resolve(expr)
				if err != nil {
					return err
				}
				writeLayout(out, typ)
			}
			return nil
		},
	}
}

// writeLayout prints a type's size and, for aggregates, its members.
func writeLayout(w io.Writer, t *typeinfo.Type) {
	fmt.Fprintf(w, "%s (%s, size %d, align %d)\n", t, t.Kind, t.Size, t.Align)
	switch t.Kind {
	case typeinfo.KindStruct, typeinfo.KindUnion:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, f := range t.Fields {
			name := f.Name
			if name == "" {
				name = "<anonymous>"
			}
			offset := fmt.Sprintf("%d", f.Offset)
			if f.IsBitField() {
				offset = fmt.Sprintf("%d:%d+%d", f.Offset, f.BitOffset, f.BitSize)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", offset, name, f.Type)
		}
		tw.Flush()
	case typeinfo.KindEnum:
		names := make([]string, len(t.Enumerators))
		for i, e := range t.Enumerators {
			names[i] = fmt.Sprintf("%s = %d", e.Name, e.Value)
		}
		fmt.Fprintf(w, "  {%s}\n", strings.Join(names, ", "))
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config [setting...]",
		Short: "Show the effective configuration and where each setting comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = opts.store.Settings()
			}
			for _, path := range paths {
				if opts.store.Source(path) == "" {
					return fmt.Errorf("unknown setting %q", path)
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, path := range paths {
				v, src, _ := opts.store.Get(path)
				if p := opts.store.LayerPath(src); p != "" {
					src += " (" + p + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", path, config.FormatValue(v), src)
			}
			return tw.Flush()
		},
	}
}
