package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/ledger"
	"clipforge/internal/logging"
)

// heartbeatStaleAfter is how long a claimed run may go without a heartbeat
// before another worker may reclaim it.
const heartbeatStaleAfter = 5 * time.Minute

// Manager runs a pool of workers that claim runs from the ledger store and
// drive them through the orchestrator. Runs are claimed atomically, so
// multiple workers (or daemon instances sharing a database) never process the
// same run twice.
type Manager struct {
	cfg    *config.Config
	store  *ledger.Store
	orch   *Orchestrator
	logger *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(cfg *config.Config, store *ledger.Store, orch *Orchestrator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		orch:         orch,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second,
	}
}

// Start requeues interrupted runs and launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("pipeline already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	m.wg.Add(workers)
	m.mu.Unlock()

	if requeued, err := m.store.RequeueInterrupted(runCtx); err != nil {
		m.logger.Warn("requeue interrupted runs failed", logging.Error(err))
	} else if requeued > 0 {
		m.logger.Info("requeued interrupted runs", logging.Int64("count", requeued))
	}

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop cancels in-flight work, waits for workers to exit, and requeues any
// runs left at an in-flight status so the next start resumes them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if _, err := m.store.RequeueInterrupted(shutdownCtx); err != nil {
		m.logger.Warn("requeue on shutdown failed", logging.Error(err))
	}
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		run, stage, err := m.store.ClaimNext(ctx, heartbeatStaleAfter)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim next run failed", logging.Error(err))
			m.wait(ctx)
			continue
		}
		if run == nil {
			m.wait(ctx)
			continue
		}

		logger.Info("run claimed",
			logging.String(logging.FieldRunID, run.ID),
			logging.String(logging.FieldStage, string(stage)))
		if err := m.orch.Execute(ctx, run, stage); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("run execution failed",
				logging.String(logging.FieldRunID, run.ID),
				logging.Error(err))
		}
	}
}

func (m *Manager) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
