package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tuxcanfly/gpk/pkg/pack"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a manifest script",
		Long:  "Runs the named script from the manifest's scripts table under the embedded shell.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, args[0], args[1:])
		},
	}
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "test",
		Aliases: []string{"t", "tst"},
		Short:   "Run the test script",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, "test", nil)
		},
	}
}

func runScript(cmd *cobra.Command, script string, args []string) error {
	p, err := targetPackage()
	if err != nil {
		return err
	}

	status, err := p.Run(cmd.Context(), script, args)
	if err != nil {
		// A missing script is reported without raising; the process still
		// exits nonzero.
		if errors.Is(err, pack.ErrNoSuchScript) {
			Env.Error(err)
			exitCode = 1
			return nil
		}
		return err
	}

	exitCode = status
	return nil
}
