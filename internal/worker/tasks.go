package worker

import (
	"context"
	"log/slog"
	"time"
)

// LapsedSweeper expires lapsed paid plans in batches.
type LapsedSweeper interface {
	SweepLapsed(ctx context.Context, batchSize int) (int, error)
}

// SessionPurger removes expired login sessions.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context) error
}

type planSweepTask struct {
	sweeper   LapsedSweeper
	every     time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewPlanSweepTask expires accounts whose paid plan has ended, so users who
// never come back still drop to Free.
func NewPlanSweepTask(sweeper LapsedSweeper, every time.Duration, batchSize int, logger *slog.Logger) Task {
	return &planSweepTask{sweeper: sweeper, every: every, batchSize: batchSize, logger: logger}
}

func (t *planSweepTask) Name() string            { return "plan_sweep" }
func (t *planSweepTask) Interval() time.Duration { return t.every }

func (t *planSweepTask) Run(ctx context.Context) error {
	n, err := t.sweeper.SweepLapsed(ctx, t.batchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Info("Expired lapsed plans", "count", n)
	}
	return nil
}

type sessionCleanupTask struct {
	purger SessionPurger
	every  time.Duration
}

// NewSessionCleanupTask deletes expired sessions and their stored values.
func NewSessionCleanupTask(purger SessionPurger, every time.Duration) Task {
	return &sessionCleanupTask{purger: purger, every: every}
}

func (t *sessionCleanupTask) Name() string            { return "session_cleanup" }
func (t *sessionCleanupTask) Interval() time.Duration { return t.every }

func (t *sessionCleanupTask) Run(ctx context.Context) error {
	return t.purger.DeleteExpiredSessions(ctx)
}
