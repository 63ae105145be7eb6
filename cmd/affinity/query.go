package main

import (
	"fmt"
	"io"

	"github.com/hupe1980/affinity"
	"github.com/hupe1980/affinity/inherit"
	"github.com/hupe1980/affinity/schema"
	"github.com/hupe1980/affinity/tag"
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		schemas []string
		exact   bool
	)

	cmd := &cobra.Command{
		Use:   "query <name> <row> [column]",
		Short: "Print the records of a cell, or of every column of a row",
		Long: `query resolves the row and column tags to the closest indexed ancestor,
unless --exact is given, and prints the fields of every requested schema.
Without a column, every column of the row is printed.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.loadTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer t.Close()

			names := schemas
			if len(names) == 0 {
				names = t.Schemas()
			}
			out := cmd.OutOrStdout()
			row := tag.Tag(args[1])

			if len(args) == 2 {
				if _, ok := t.QueryRow(row, exact, names...); !ok {
					return fmt.Errorf("no data for row %s", row)
				}
				resolved, _ := t.Resolve(affinity.Rows, row, exact)
				for _, name := range names {
					s, _ := t.Schema(name)
					for _, col := range t.SortedTags(affinity.Columns) {
						rec := t.CellData(name, inherit.Cell(resolved, col))
						if rec == nil {
							continue
						}
						fmt.Fprintf(out, "%s @ %s|%s\n", name, resolved, col)
						printRecord(out, s, rec)
					}
				}
				return nil
			}

			col := tag.Tag(args[2])
			recs, ok := t.Query(row, col, exact, names...)
			if !ok {
				return fmt.Errorf("no data for %s|%s", row, col)
			}
			resolvedRow, _ := t.Resolve(affinity.Rows, row, exact)
			resolvedCol, _ := t.Resolve(affinity.Columns, col, exact)
			for i, name := range names {
				s, _ := t.Schema(name)
				fmt.Fprintf(out, "%s @ %s|%s\n", name, resolvedRow, resolvedCol)
				printRecord(out, s, recs[i])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&schemas, "schema", "s", nil, "schemas to query (default: all)")
	cmd.Flags().BoolVar(&exact, "exact", false, "do not fall back to ancestor tags")
	return cmd
}

func printRecord(w io.Writer, s schema.Schema, rec []byte) {
	for _, f := range s.Fields() {
		fmt.Fprintf(w, "  %-16s %s\n", f.Name, f.Format(rec))
	}
}
