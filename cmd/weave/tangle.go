package main

import (
	"github.com/dgallion1/docweave/internal/pipeline"
	"github.com/dgallion1/docweave/internal/weave"
	"github.com/spf13/cobra"
)

func newTangleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tangle <file>",
		Short: "Extract the code chunks of a literate document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := pipeline.LoadRegistry(a.cfg.Weave)
			if err != nil {
				return err
			}
			doc := weave.New(args[0], weave.Options{
				TangleExt: a.cfg.Weave.TangleExt,
				Registry:  reg,
				Stdout:    cmd.OutOrStdout(),
				Logger:    a.log,
			})
			_, err = doc.Tangle()
			return err
		},
	}
	cmd.Flags().String("ext", "", "extension of the tangled file (default .py)")
	return cmd
}
