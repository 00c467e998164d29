package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashier_service/internal/metrics"
	"cashier_service/internal/transaction"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is the engine operation the scheduler drives.
type Sweeper interface {
	ReconcilePending(ctx context.Context) (transaction.ReconcileReport, error)
}

// Scheduler runs a reconciliation sweep on a cron schedule. Runs never
// overlap: a tick that fires while a sweep is in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	metrics *metrics.Metrics
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(sweeper Sweeper, m *metrics.Metrics, logger *zap.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		sweeper: sweeper,
		metrics: m,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the sweep under spec (standard cron or "@every 5m") and
// starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("reconciliation scheduled", zap.String("schedule", spec))
	return nil
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	started := time.Now()
	report, err := s.sweeper.ReconcilePending(ctx)
	s.metrics.ReconcileRun(err == nil, started)
	if err != nil {
		s.logger.Error("reconciliation sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("reconciliation sweep done",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("checked", report.Checked))
}

// Stop cancels an in-flight sweep and waits for the scheduler to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}
