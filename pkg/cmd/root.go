package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuxcanfly/gpk/pkg/env"
	"github.com/tuxcanfly/gpk/pkg/pack"
)

var (
	flagGlobal bool

	// Env holds the resolved environment, available to all subcommands
	// after PersistentPreRunE completes.
	Env *env.Environment

	// exitCode is set by handlers that finish without raising but want a
	// nonzero process exit (script failures, missing scripts).
	exitCode int
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gpk",
		Short: "Git-native package manager",
		Long: `gpk installs packages straight from git remotes. Dependencies are
declared in package.json, resolved by tag, branch, or commit, and laid
out under node_modules with duplication only where versions conflict.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := env.Load()
			if err != nil {
				return err
			}
			if err := e.Ensure(); err != nil {
				return err
			}
			Env = e
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flagGlobal, "global", "g", false, "operate on the global package")

	root.AddCommand(newInitCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newUninstallCmd())
	root.AddCommand(newRebuildCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newTestCmd())

	return root
}

func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		if Env != nil {
			Env.Error(err)
		} else {
			fmt.Fprintf(os.Stderr, "gpk: %v\n", err)
		}
	}
	if Env != nil {
		Env.Close()
	}
	if err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// targetPackage loads the package a command operates on: the global
// package under --global, otherwise the package enclosing the working
// directory.
func targetPackage() (*pack.Package, error) {
	if flagGlobal {
		if err := ensureGlobalManifest(); err != nil {
			return nil, err
		}
		return pack.FromDirectory(Env.Global, false, Env, nil)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return pack.FromDirectory(wd, true, Env, nil)
}

// ensureGlobalManifest lazily synthesizes the global package manifest on
// first global operation.
func ensureGlobalManifest() error {
	if _, err := os.Stat(Env.Global); err != nil {
		return err
	}
	err := pack.Init(Env.Global, "global", "0.0.0")
	if err != nil && !errors.Is(err, pack.ErrAlreadyInitialized) {
		return err
	}
	return nil
}
