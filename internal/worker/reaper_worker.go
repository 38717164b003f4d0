package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/repository"
)

// ReaperWorker returns jobs whose lease has expired to the waiting state.
// A lease only expires when the worker holding it died or hung, so this is
// the redelivery path that makes the queue at-least-once. Leases are
// persisted, so recovery survives server restarts.
type ReaperWorker struct {
	repo     repository.JobRepository
	interval time.Duration
	logger   *zap.Logger
}

func NewReaperWorker(
	repo repository.JobRepository,
	interval time.Duration,
	logger *zap.Logger,
) *ReaperWorker {
	return &ReaperWorker{repo: repo, interval: interval, logger: logger}
}

// Run ticks every interval and requeues expired leases.
// Stops cleanly when ctx is cancelled.
func (rw *ReaperWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("reaper worker started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reaper worker stopping")
			return
		case <-ticker.C:
			rw.poll(ctx)
		}
	}
}

func (rw *ReaperWorker) poll(ctx context.Context) {
	n, err := rw.repo.RequeueExpired(ctx, time.Now().UTC())
	if err != nil {
		rw.logger.Error("reaper poll error", zap.Error(err))
		return
	}
	if n > 0 {
		rw.logger.Warn("requeued jobs with expired leases", zap.Int("count", n))
	}
}
