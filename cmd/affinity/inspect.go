package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/affinity"
	"github.com/hupe1980/affinity/tag"
	"github.com/spf13/cobra"
)

func newInspectCmd(a *app) *cobra.Command {
	var showTags bool

	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show the header, tags and memory of a stored table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := a.store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			raw, env, err := affinity.OpenEnvelope(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}

			t, err := a.newTable()
			if err != nil {
				return err
			}
			defer t.Close()
			if err := t.Load(bytes.NewReader(raw)); err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			st := t.Stats()
			fmt.Fprintf(out, "table:        %s\n", t.Name())
			fmt.Fprintf(out, "id:           %s\n", t.ID())
			if t.Description() != "" {
				fmt.Fprintf(out, "description:  %s\n", t.Description())
			}
			fmt.Fprintf(out, "stored:       %s (%s, %s raw)\n",
				humanize.Bytes(env.StoredSize), env.Compressor, humanize.Bytes(env.RawSize))
			fmt.Fprintf(out, "rows:         %s\n", humanize.Comma(int64(st.Rows)))
			fmt.Fprintf(out, "columns:      %s\n", humanize.Comma(int64(st.Columns)))
			fmt.Fprintf(out, "links:        %s\n", humanize.Comma(int64(st.Links)))
			if t.HasLoadingErrors() {
				fmt.Fprintln(out, "warnings:     orphaned tags were removed while loading")
			}
			for _, name := range t.Schemas() {
				ps := st.Pages[name]
				fmt.Fprintf(out, "schema %s: %s records, %d chunks, %s held\n",
					name, humanize.Comma(int64(ps.LiveRecords)), ps.Chunks, humanize.Bytes(uint64(ps.BytesHeld)))
			}

			if showTags {
				printTags(out, t, affinity.Rows)
				printTags(out, t, affinity.Columns)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTags, "tags", false, "list row and column tags")
	return cmd
}

func printTags(w io.Writer, t *affinity.Table, axis affinity.Axis) {
	fmt.Fprintf(w, "%ss:\n", axis)
	for _, tg := range t.SortedTags(axis) {
		depth := 0
		for p := t.Taxonomy().Parent(tg); p != tag.None; p = t.Taxonomy().Parent(p) {
			depth++
		}
		fmt.Fprintf(w, "  %s%s\n", strings.Repeat("  ", depth), tg)
	}
}
