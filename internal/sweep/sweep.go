// Package sweep runs the runtime's two periodic maintenance jobs:
// expiring idempotency records past their TTL and trimming old dialog
// sessions. Each tick is a bounded, synchronous sweep.
package sweep

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/bantz/internal/dialogstore"
	"github.com/haasonsaas/bantz/internal/idempotency"
)

// Scheduler owns the two periodic maintenance jobs and the cron runner that
// drives them.
type Scheduler struct {
	runner *cron.Cron
	logger *slog.Logger
}

// Config names the jobs' schedules (standard 5-field cron expressions) and
// the keep-limits they apply.
type Config struct {
	IdempotencySweepSpec string // default: every 15 minutes
	SessionPruneSpec     string // default: once a day
	KeepSessions         int    // PruneOldSessions(keepSessions)
}

// DefaultConfig sweeps idempotency every 15 minutes and prunes sessions
// daily, keeping the 100 most recent.
func DefaultConfig() Config {
	return Config{
		IdempotencySweepSpec: "@every 15m",
		SessionPruneSpec:     "@daily",
		KeepSessions:         100,
	}
}

// New builds a Scheduler that is not yet running; call Start to begin.
func New(cfg Config, idem *idempotency.Store, dialog *dialogstore.Store, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runner := cron.New()

	if idem != nil {
		if _, err := runner.AddFunc(cfg.IdempotencySweepSpec, func() {
			if err := idem.Sweep(); err != nil {
				logger.Error("idempotency sweep failed", "error", err)
			}
		}); err != nil {
			return nil, err
		}
	}

	if dialog != nil {
		if _, err := runner.AddFunc(cfg.SessionPruneSpec, func() {
			n, err := dialog.PruneOldSessions(context.Background(), cfg.KeepSessions)
			if err != nil {
				logger.Error("session prune failed", "error", err)
				return
			}
			if n > 0 {
				logger.Info("pruned old dialog sessions", "count", n)
			}
		}); err != nil {
			return nil, err
		}
	}

	return &Scheduler{runner: runner, logger: logger}, nil
}

// Start begins running the scheduled jobs on their own goroutine.
func (s *Scheduler) Start() { s.runner.Start() }

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() { <-s.runner.Stop().Done() }
