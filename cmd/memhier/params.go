package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/sarchlab/memhier/hierarchy"
	"github.com/spf13/cobra"
)

func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List the parameters with their default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(tw, "NAME\tDEFAULT\tUSAGE")
			for _, p := range hierarchy.Params() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Default(), p.Usage)
			}

			return tw.Flush()
		},
	}
}
