package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/affinity/codec"
	"github.com/hupe1980/affinity/export"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format  string
		out     string
		schemas []string
		jsonLib string
	)

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export a stored table as JSON or SQLite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.loadTable(ctx, args[0])
			if err != nil {
				return err
			}
			defer t.Close()

			optFns := []export.Option{export.WithSchemas(schemas...)}
			switch format {
			case "json":
				c, ok := codec.ByName(jsonLib)
				if !ok {
					return fmt.Errorf("unknown json codec %q", jsonLib)
				}
				optFns = append(optFns, export.WithCodec(c))
				if out == "" || out == "-" {
					return export.JSON(ctx, cmd.OutOrStdout(), t, optFns...)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := export.JSON(ctx, f, t, optFns...); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()

			case "sqlite":
				if out == "" || out == "-" {
					return fmt.Errorf("sqlite export needs --out")
				}
				return export.SQLite(ctx, out, t, optFns...)

			default:
				return fmt.Errorf("unknown export format %q (want json or sqlite)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "export format: json or sqlite")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (json default: stdout)")
	cmd.Flags().StringSliceVarP(&schemas, "schema", "s", nil, "schemas to export (default: all)")
	cmd.Flags().StringVar(&jsonLib, "codec", codec.Default.Name(), "json codec: json or go-json")
	return cmd
}
