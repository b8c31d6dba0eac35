package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clipforge/internal/deps"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Requeue interrupted runs and process everything claimable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := deps.Verify(cfg); err != nil {
				return err
			}
			store, artifacts, closeStores, err := ctx.openStores()
			if err != nil {
				return err
			}
			defer closeStores()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			requeued, err := store.RequeueInterrupted(runCtx)
			if err != nil {
				return fmt.Errorf("requeue interrupted runs: %w", err)
			}
			if requeued > 0 {
				fmt.Fprintf(out, "Requeued %d interrupted run(s)\n", requeued)
			}

			logger, err := newCommandLogger(cfg)
			if err != nil {
				return err
			}
			orch := newOrchestrator(cfg, store, artifacts, logger)

			processed := 0
			for {
				claimed, stage, err := store.ClaimNext(runCtx, claimStaleAfter)
				if err != nil {
					return err
				}
				if claimed == nil {
					break
				}
				fmt.Fprintf(out, "Resuming run %s at %s\n", shortID(claimed.ID), stage)
				if err := orch.Execute(runCtx, claimed, stage); err != nil {
					return err
				}
				processed++
			}

			if processed == 0 {
				fmt.Fprintln(out, "Nothing to resume")
			} else {
				fmt.Fprintf(out, "Processed %d run(s)\n", processed)
			}
			return nil
		},
	}
}
