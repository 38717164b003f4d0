package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/repository"
)

// Handler performs the side effect of a job. A returned error counts as a
// failed attempt; wrap it with domain.Permanent to dead-letter immediately.
// Jobs are delivered at least once, so handlers must be idempotent.
type Handler func(ctx context.Context, job *domain.Job) error

// Typed adapts a handler for one payload variant. The payload is decoded
// before fn runs; a payload of the wrong shape is a permanent failure.
func Typed[P domain.JobPayload](fn func(ctx context.Context, job *domain.Job, payload P) error) Handler {
	return func(ctx context.Context, job *domain.Job) error {
		decoded, err := domain.DecodePayload(job.Type, job.Payload)
		if err != nil {
			return err
		}
		p, ok := decoded.(P)
		if !ok {
			return domain.Permanent(fmt.Errorf("%w: %s payload routed to wrong handler", domain.ErrUnknownJobType, job.Type))
		}
		return fn(ctx, job, p)
	}
}

// EnqueueOptions carries optional enqueue parameters.
type EnqueueOptions struct {
	// IdempotencyKey collapses repeated enqueues of the same logical job into
	// one stored job.
	IdempotencyKey string
}

// Broker is the message-broker face of the queue: producers enqueue durable
// jobs and workers look up the handler subscribed for each job type.
type Broker struct {
	repo        repository.JobRepository
	maxAttempts int
	logger      *zap.Logger
	onEnqueued  func(domain.JobType)

	// wake nudges the scheduler when a job is immediately eligible.
	wake chan struct{}

	mu       sync.RWMutex
	handlers map[domain.JobType]Handler
}

// NewBroker constructs a broker. onEnqueued is optional (nil = no-op).
func NewBroker(
	repo repository.JobRepository,
	maxAttempts int,
	logger *zap.Logger,
	onEnqueued func(domain.JobType),
) *Broker {
	if onEnqueued == nil {
		onEnqueued = func(domain.JobType) {}
	}
	return &Broker{
		repo:        repo,
		maxAttempts: maxAttempts,
		logger:      logger,
		onEnqueued:  onEnqueued,
		wake:        make(chan struct{}, 1),
		handlers:    make(map[domain.JobType]Handler),
	}
}

// Enqueue stores a job that becomes eligible after delay and returns its id
// without waiting for it to run. The delay is a lower bound: the job is never
// handed to a handler earlier, but may run later depending on worker
// availability.
func (b *Broker) Enqueue(
	ctx context.Context,
	jobType domain.JobType,
	payload []byte,
	delay time.Duration,
	opts EnqueueOptions,
) (string, error) {
	if !jobType.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
	}
	if delay < 0 {
		delay = 0
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		State:       domain.JobWaiting,
		MaxAttempts: b.maxAttempts,
		EligibleAt:  now.Add(delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.IdempotencyKey != "" {
		key := opts.IdempotencyKey
		job.IdempotencyKey = &key
	}

	id, created, err := b.repo.Insert(ctx, job)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	if !created {
		b.logger.Debug("duplicate enqueue collapsed",
			zap.String("job_id", id),
			zap.String("idempotency_key", opts.IdempotencyKey),
		)
		return id, nil
	}

	b.onEnqueued(jobType)
	if delay == 0 {
		b.notify()
	}
	b.logger.Debug("job enqueued",
		zap.String("job_id", id),
		zap.String("type", string(jobType)),
		zap.Duration("delay", delay),
	)
	return id, nil
}

// EnqueueJob encodes a typed payload and enqueues it under the payload's
// idempotency key.
func (b *Broker) EnqueueJob(ctx context.Context, p domain.JobPayload, delay time.Duration) (string, error) {
	data, err := domain.EncodePayload(p)
	if err != nil {
		return "", err
	}
	return b.Enqueue(ctx, p.JobType(), data, delay, EnqueueOptions{IdempotencyKey: p.IdempotencyKey()})
}

// Subscribe registers the handler for a job type, replacing any previous one.
func (b *Broker) Subscribe(jobType domain.JobType, h Handler) {
	if h == nil {
		panic("queue: nil handler for " + string(jobType))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[jobType] = h
}

// Handler returns the handler subscribed for jobType.
func (b *Broker) Handler(jobType domain.JobType) (Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[jobType]
	return h, ok
}

// Wake is signalled whenever a job is enqueued without delay.
func (b *Broker) Wake() <-chan struct{} {
	return b.wake
}

// Get returns a stored job, including completed and dead-lettered ones.
func (b *Broker) Get(ctx context.Context, id string) (*domain.Job, error) {
	return b.repo.GetByID(ctx, id)
}

// DeadLettered lists the most recently dead-lettered jobs. They are kept for
// inspection and never retried automatically.
func (b *Broker) DeadLettered(ctx context.Context, limit int) ([]*domain.Job, error) {
	return b.repo.ListDeadLettered(ctx, limit)
}

func (b *Broker) notify() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}
