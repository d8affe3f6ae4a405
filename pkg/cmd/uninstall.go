package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <pkg>...",
		Short: "Remove installed dependencies",
		Long:  "Removes the named subtrees from node_modules.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUninstall,
	}
}

func runUninstall(cmd *cobra.Command, args []string) error {
	p, err := targetPackage()
	if err != nil {
		return err
	}

	if err := p.Uninstall(args); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s\n", strings.Join(args, ", "))
	return nil
}
