package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rebuild",
		Aliases: []string{"build", "rb"},
		Short:   "Re-run install scripts for every dependency",
		Long:    "Re-runs the install script of each materialized dependency in place, without re-fetching.",
		RunE:    runRebuild,
	}
}

func runRebuild(cmd *cobra.Command, args []string) error {
	p, err := targetPackage()
	if err != nil {
		return err
	}

	if err := p.Rebuild(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %s\n", p.Info.Name)
	return nil
}
