package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "audit <run-id>",
		Short: "Export a run's full ledger history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeStores, err := ctx.openStores()
			if err != nil {
				return err
			}
			defer closeStores()

			runID, err := resolveRunID(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			if outputPath == "" {
				return store.Export(cmd.Context(), runID, cmd.OutOrStdout())
			}

			file, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("create audit file: %w", err)
			}
			defer file.Close()
			if err := store.Export(cmd.Context(), runID, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote audit export to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the export to a file instead of stdout")
	return cmd
}
