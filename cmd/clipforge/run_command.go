package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clipforge/internal/deps"
	"clipforge/internal/ledger"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Queue a source video and process it through publication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, artifacts, closeStores, err := ctx.openStores()
			if err != nil {
				return err
			}
			defer closeStores()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run, err := store.NewRun(runCtx, args[0])
			if err != nil {
				return fmt.Errorf("queue run: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued run %s\n", run.ID)
			if noWait {
				return nil
			}
			if err := deps.Verify(cfg); err != nil {
				return err
			}

			logger, err := newCommandLogger(cfg)
			if err != nil {
				return err
			}
			orch := newOrchestrator(cfg, store, artifacts, logger)

			final, err := processRun(runCtx, store, orch, run.ID)
			if err != nil {
				return err
			}
			switch final.Status {
			case ledger.StatusPublished:
				fmt.Fprintf(out, "Run %s published (platform id %s)\n", shortID(final.ID), final.PlatformID)
				return nil
			case ledger.StatusFailed:
				return fmt.Errorf("run %s failed: %s", shortID(final.ID), final.ErrorMessage)
			case ledger.StatusAbandoned:
				return fmt.Errorf("run %s abandoned after retries: %s", shortID(final.ID), final.ErrorMessage)
			default:
				return fmt.Errorf("run %s stopped at %s", shortID(final.ID), final.Status)
			}
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Queue the run without processing it")
	return cmd
}
