package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dgallion1/docweave/internal/pipeline"
	"github.com/spf13/cobra"
)

func newDialectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dialects",
		Short: "List the available output dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := pipeline.LoadRegistry(a.cfg.Weave)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tEXTENSION\tFIGURES")
			for _, name := range reg.Names() {
				d, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t.%s\t%s\n", d.Name, d.Extension, strings.Join(d.SavedFormats, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("dialects-file", "", "CUE file with custom dialects")
	return cmd
}
