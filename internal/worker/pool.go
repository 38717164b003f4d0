package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/config"
	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/repository"
)

// depthSampleInterval is how often the pool reports the ready-queue depth.
const depthSampleInterval = time.Second

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnCompleted    func(jobType domain.JobType, latency time.Duration)
	OnRetried      func(jobType domain.JobType)
	OnDeadLettered func(jobType domain.JobType)
	// OnQueueDepth receives the ready-queue depth once per sample interval.
	OnQueueDepth func(depth int)
}

// Pool manages the lifecycle of all workers.
// All workers share the same ready queue and resolve handlers through the
// broker, so any worker can run any job type.
type Pool struct {
	workers []*Worker
	q       *queue.ReadyQueue
	onDepth func(int)
	wg      sync.WaitGroup
}

// NewPool creates cfg.JobWorkers identical workers.
func NewPool(
	cfg *config.Config,
	q *queue.ReadyQueue,
	repo repository.JobRepository,
	broker *queue.Broker,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, cfg.JobWorkers)

	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, broker,
			cfg.RetryBackoff,
			cfg.JobLease,
			logger.With(zap.Int("worker_id", i)),
			hooks,
		)
	}

	return &Pool{workers: workers, q: q, onDepth: hooks.OnQueueDepth}
}

// Size is the number of workers in the pool.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	if p.onDepth != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.sampleDepth(ctx)
		}()
	}
}

func (p *Pool) sampleDepth(ctx context.Context) {
	ticker := time.NewTicker(depthSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.onDepth(p.q.Depth())
		}
	}
}

// Wait blocks until every worker (and the depth sampler) has returned after
// ctx is cancelled.
// Call this after cancelling the context to ensure in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
