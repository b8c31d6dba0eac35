package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/ledger"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Rehash a run's recorded artifacts against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, artifacts, closeStores, err := ctx.openStores()
			if err != nil {
				return err
			}
			defer closeStores()

			runID, err := resolveRunID(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			report, err := ledger.NewVerifier(store, artifacts, nil).Verify(cmd.Context(), runID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Run %s: %d fingerprint(s) checked\n", shortID(runID), report.Checked)
				for _, gap := range report.Gaps {
					fmt.Fprintf(out, "  gap at %s: %s\n", gap.Stage, gap.Reason)
				}
				for _, mismatch := range report.Mismatches {
					fmt.Fprintf(out, "  %s at %s: %s\n", mismatch.Reason, mismatch.Stage, mismatch.Fingerprint)
				}
				if report.Clean() {
					fmt.Fprintln(out, "Provenance verified: complete and untampered")
				}
			}

			if !report.Clean() {
				return fmt.Errorf("run %s failed verification: %d mismatch(es), %d gap(s)",
					shortID(runID), len(report.Mismatches), len(report.Gaps))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
