package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuxcanfly/gpk/pkg/pack"
)

func newInstallCmd() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install [pkg...]",
		Short: "Install dependencies",
		Long: `Resolves and installs the dependency tree declared in package.json.

With arguments, installs only the named dependencies; an argument that is
not declared in the manifest is treated as a source string (alias form,
git URL, or git+ URL) and its name is inferred from the repository.`,
		Args: cobra.MaximumNArgs(1024),
		RunE: runInstall,
	}
	installCmd.Flags().Bool("production", false, "skip devDependencies")
	return installCmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	production, err := cmd.Flags().GetBool("production")
	if err != nil {
		return err
	}

	p, err := targetPackage()
	if err != nil {
		return err
	}

	opts := pack.InstallOptions{
		Production: production,
		Packages:   args,
	}
	if err := p.Install(cmd.Context(), opts); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", p.Info.Name)
	return nil
}
