package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var compression string

	cmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Rewrite a stored table in the current format",
		Long: `convert loads a table written by any supported format version and stores
it again in the current one, optionally with a different compression.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.compressor(compression)
			if err != nil {
				return err
			}
			t, err := a.loadTable(ctx, args[0])
			if err != nil {
				return err
			}
			defer t.Close()

			if err := t.SaveTo(ctx, a.store, args[1], c); err != nil {
				return err
			}
			in, _ := a.store.Get(ctx, args[0])
			written, err := a.store.Get(ctx, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s, %s)\n",
				args[0], humanize.Bytes(uint64(len(in))),
				args[1], humanize.Bytes(uint64(len(written))), c.Name())
			if t.HasLoadingErrors() {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: orphaned tags were removed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&compression, "compression", "c", "", "compression of the output (default: config)")
	return cmd
}
