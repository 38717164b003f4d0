package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/repository"
)

// Worker is a single goroutine that continuously pulls claimed jobs from the
// ready queue, runs the subscribed handler, and records the outcome:
// completion, a retry after backoff, or dead-lettering.
type Worker struct {
	id      int
	q       *queue.ReadyQueue
	repo    repository.JobRepository
	broker  *queue.Broker
	backoff []time.Duration
	lease   time.Duration
	logger  *zap.Logger

	// Hooks for metrics, injected by the pool so the worker stays metrics-agnostic.
	onCompleted    func(domain.JobType, time.Duration)
	onRetried      func(domain.JobType)
	onDeadLettered func(domain.JobType)
}

// NewWorker constructs a worker. Nil hooks are replaced with no-ops.
func NewWorker(
	id int,
	q *queue.ReadyQueue,
	repo repository.JobRepository,
	broker *queue.Broker,
	backoff []time.Duration,
	lease time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Worker {
	if hooks.OnCompleted == nil {
		hooks.OnCompleted = func(domain.JobType, time.Duration) {}
	}
	if hooks.OnRetried == nil {
		hooks.OnRetried = func(domain.JobType) {}
	}
	if hooks.OnDeadLettered == nil {
		hooks.OnDeadLettered = func(domain.JobType) {}
	}
	if len(backoff) == 0 {
		backoff = []time.Duration{time.Second}
	}
	if lease <= 0 {
		lease = time.Minute
	}
	return &Worker{
		id: id, q: q, repo: repo, broker: broker,
		backoff: backoff, lease: lease, logger: logger,
		onCompleted:    hooks.OnCompleted,
		onRetried:      hooks.OnRetried,
		onDeadLettered: hooks.OnDeadLettered,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	start := time.Now()
	log := w.logger.With(
		zap.String("job_id", item.JobID),
		zap.String("type", string(item.Type)),
	)

	// A job that started before shutdown is allowed to finish within its
	// lease; after that the reaper would hand it to someone else anyway.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.lease)
	defer cancel()

	job, err := w.repo.GetByID(jobCtx, item.JobID)
	if err != nil {
		log.Error("failed to fetch job", zap.Error(err))
		return
	}

	// Only a job this scheduler round leased is ours to run.
	if job.State != domain.JobActive {
		log.Debug("skipping job that is no longer active", zap.String("state", string(job.State)))
		return
	}

	handler, ok := w.broker.Handler(job.Type)
	if !ok {
		w.handleFailure(jobCtx, job, fmt.Errorf("%w: no handler subscribed for %q", domain.ErrTransientJobFailure, job.Type))
		return
	}

	if err := runHandler(jobCtx, handler, job); err != nil {
		log.Warn("job handler failed",
			zap.Error(err),
			zap.Int("attempts", job.Attempts),
		)
		w.handleFailure(jobCtx, job, err)
		return
	}

	elapsed := time.Since(start)
	if err := w.repo.Complete(jobCtx, job.ID, time.Now().UTC()); err != nil {
		log.Error("failed to mark job completed", zap.Error(err))
		return
	}

	w.onCompleted(job.Type, elapsed)
	log.Info("job completed", zap.Duration("latency", elapsed))
}

// runHandler converts a handler panic into an ordinary failed attempt.
func runHandler(ctx context.Context, h queue.Handler, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", domain.ErrTransientJobFailure, r)
		}
	}()
	return h(ctx, job)
}

// handleFailure either schedules a retry (if attempts remain) or dead-letters
// the job. Dead-lettered jobs are kept for inspection and never retried.
//
// Retry schedule uses the configured backoff:
//
//	attempt 0 → backoff[0]  (default 5 s)
//	attempt 1 → backoff[1]  (default 30 s)
//	attempt 2 → backoff[2]  (default 120 s)
//	attempt N ≥ len(backoff) → last backoff entry (clamped)
func (w *Worker) handleFailure(ctx context.Context, job *domain.Job, jobErr error) {
	log := w.logger.With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)))

	if job.Exhausted() || domain.IsPermanent(jobErr) {
		failure := domain.JobFailure{Error: jobErr.Error(), DeadLetter: true}
		if err := w.repo.Fail(ctx, job.ID, failure); err != nil {
			log.Error("failed to dead-letter job", zap.Error(err))
			return
		}
		w.onDeadLettered(job.Type)
		log.Warn("job dead-lettered",
			zap.Int("attempts", job.Attempts+1),
			zap.Bool("permanent", errors.Is(jobErr, domain.ErrPermanentJobFailure)),
			zap.Error(jobErr),
		)
		return
	}

	idx := job.Attempts
	if idx >= len(w.backoff) {
		idx = len(w.backoff) - 1
	}
	retryAt := time.Now().UTC().Add(w.backoff[idx])

	failure := domain.JobFailure{Error: jobErr.Error(), RetryAt: retryAt}
	if err := w.repo.Fail(ctx, job.ID, failure); err != nil {
		log.Error("failed to schedule retry", zap.Error(err))
		return
	}
	w.onRetried(job.Type)
}
