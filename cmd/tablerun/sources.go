package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newSourcesCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured data sources",
		Long:  `Connect to every configured data source and list the ones reachable by programs.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := root.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			names := env.registry.Names()
			w := cmd.OutOrStdout()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(w, "(no data sources)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"name", "driver"})
			for _, name := range names {
				t.AppendRow(table.Row{name, env.registry.Get(name).Driver()})
			}
			t.Render()
			return nil
		},
	}
}
