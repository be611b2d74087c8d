package main

import (
	"fmt"

	"github.com/pmiettinen/libsbp/internal/config"
	"github.com/pmiettinen/libsbp/internal/logging"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate a config file",
		// Overrides the root setup: these commands work on files that may
		// not be valid yet.
		PersistentPreRun: func(*cobra.Command, []string) {
			loadEnv()
			logging.ConfigureRuntime()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sbp.toml"
			if len(args) == 1 {
				path = args[0]
			}
			kind, _ := cmd.Flags().GetString("input")
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteTemplate(path, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", kind, path)
			return nil
		},
	}
	initCmd.Flags().String("input", config.InputFile, "input kind the template is for (file, tcp, stdin)")
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated config at %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
