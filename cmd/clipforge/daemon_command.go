package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"clipforge/internal/deps"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the worker pool until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := deps.Verify(cfg); err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return errors.New("another clipforge daemon is already running")
			}
			defer lock.Unlock()

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "clipforge.log")},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, artifacts, closeStores, err := ctx.openStores()
			if err != nil {
				return err
			}
			defer closeStores()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch := newOrchestrator(cfg, store, artifacts, logger)
			manager := pipeline.NewManager(cfg, store, orch, logger)
			if err := manager.Start(runCtx); err != nil {
				return fmt.Errorf("start worker pool: %w", err)
			}

			logger.Info("clipforge daemon started",
				logging.Int("workers", cfg.Workflow.Workers),
				logging.String("database", cfg.DatabasePath()))

			<-runCtx.Done()
			logger.Info("clipforge daemon shutting down")
			manager.Stop()
			return nil
		},
	}
}
