package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tuxcanfly/gpk/pkg/manifest"
	"github.com/tuxcanfly/gpk/pkg/pack"
)

func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new package",
		Long:  "Creates a package.json manifest in the current directory.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	initCmd.Flags().Bool("yes", false, "accept defaults without prompting")
	return initCmd
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	name := pack.InferName(wd)
	version := "0.0.0"

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	if !yes {
		if name, version, err = promptManifest(name, version); err != nil {
			return err
		}
	}

	if err := pack.Init(wd, name, version); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", manifest.FileName)
	return nil
}

// promptManifest asks for the package name and version, pre-filled with
// the inferred defaults.
func promptManifest(name, version string) (string, string, error) {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Package name").
				Value(&name),
			huh.NewInput().
				Title("Version").
				Value(&version),
		),
	).Run()
	if err != nil {
		return "", "", fmt.Errorf("init prompt failed: %w", err)
	}
	return name, version, nil
}
