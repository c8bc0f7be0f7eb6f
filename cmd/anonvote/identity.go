package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "show the local identity commitment, creating the identity if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, store, err := openIdentity()
		if err != nil {
			return err
		}
		defer store.Close()

		_, commitment, err := m.EnsureIdentity()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "commitment: %s\n", commitment)
		return nil
	},
}

var identityExportCmd = &cobra.Command{
	Use:   "export",
	Short: "print the identity as a portable string; it contains the secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, store, err := openIdentity()
		if err != nil {
			return err
		}
		defer store.Close()

		id, _, err := m.EnsureIdentity()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.Export())
		return nil
	},
}

var importForce bool

var identityImportCmd = &cobra.Command{
	Use:   "import <exported>",
	Short: "replace the local identity with an exported one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, store, err := openIdentity()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := m.Import(args[0], importForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "commitment: %s\n", id.Commitment())
		return nil
	},
}

func init() {
	identityImportCmd.Flags().BoolVar(&importForce, "force", false, "overwrite an existing identity")
	identityCmd.AddCommand(identityExportCmd, identityImportCmd)
	rootCmd.AddCommand(identityCmd)
}
