package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/repository"
)

// SchedulerWorker polls the job table for waiting jobs whose eligible_at has
// passed, leases them and hands them to the worker pool.
//
// Delayed jobs stay in the table until their time arrives, so a delay is
// only ever a lower bound on when a handler sees the job.
type SchedulerWorker struct {
	repo     repository.JobRepository
	q        *queue.ReadyQueue
	wake     <-chan struct{}
	interval time.Duration
	lease    time.Duration
	batch    int
	logger   *zap.Logger
}

// NewSchedulerWorker builds a scheduler. wake may be nil, in which case the
// scheduler relies on its ticker alone.
func NewSchedulerWorker(
	repo repository.JobRepository,
	q *queue.ReadyQueue,
	wake <-chan struct{},
	interval time.Duration,
	lease time.Duration,
	batch int,
	logger *zap.Logger,
) *SchedulerWorker {
	return &SchedulerWorker{
		repo: repo, q: q, wake: wake,
		interval: interval, lease: lease, batch: batch,
		logger: logger,
	}
}

// Run ticks every interval, and on every wake signal, and moves due jobs to
// the ready queue. Stops cleanly when ctx is cancelled.
func (sw *SchedulerWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("scheduler worker started", zap.Duration("interval", sw.interval))
	sw.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("scheduler worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		case <-sw.wake:
			sw.poll(ctx)
		}
	}
}

func (sw *SchedulerWorker) poll(ctx context.Context) {
	total := 0
	for {
		limit := min(sw.batch, sw.q.Free())
		if limit <= 0 {
			break
		}

		jobs, err := sw.repo.ClaimDue(ctx, time.Now().UTC(), sw.lease, limit)
		if err != nil {
			sw.logger.Error("scheduler poll error", zap.Error(err))
			return
		}

		for _, j := range jobs {
			err := sw.q.Push(queue.Item{JobID: j.ID, Type: j.Type})
			if err == nil {
				total++
				continue
			}
			if !errors.Is(err, domain.ErrQueueFull) {
				sw.logger.Error("could not hand job to workers", zap.String("id", j.ID), zap.Error(err))
			}
			// Give the lease back so the job is picked up on a later poll.
			if err := sw.repo.Release(ctx, j.ID); err != nil {
				sw.logger.Error("failed to release job", zap.String("id", j.ID), zap.Error(err))
			}
		}

		if len(jobs) < limit {
			break
		}
	}

	if total > 0 {
		sw.logger.Debug("dispatched due jobs", zap.Int("count", total))
	}
}
