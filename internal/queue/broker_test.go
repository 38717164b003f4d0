package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/repository"
)

func newBroker(t *testing.T) (*queue.Broker, *repository.MockJobRepository) {
	t.Helper()
	repo := repository.NewMockJobRepository()
	return queue.NewBroker(repo, 3, zap.NewNop(), nil), repo
}

func TestBroker_EnqueueStoresWaitingJobWithDelay(t *testing.T) {
	b, repo := newBroker(t)
	ctx := context.Background()

	before := time.Now().UTC()
	id, err := b.Enqueue(ctx, domain.JobCreatePost, []byte(`{"post_id":"p"}`), 5*time.Second, queue.EnqueueOptions{})
	require.NoError(t, err)

	job, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaiting, job.State)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Zero(t, job.Attempts)
	assert.False(t, job.EligibleAt.Before(before.Add(5*time.Second)))
	assert.Nil(t, job.IdempotencyKey)
}

func TestBroker_EnqueueRejectsUnknownType(t *testing.T) {
	b, _ := newBroker(t)
	_, err := b.Enqueue(context.Background(), domain.JobType("resize-image"), nil, 0, queue.EnqueueOptions{})
	assert.ErrorIs(t, err, domain.ErrUnknownJobType)
}

func TestBroker_EnqueueJobCollapsesDuplicates(t *testing.T) {
	b, _ := newBroker(t)
	ctx := context.Background()
	p := domain.NewPostPayload{PostID: "p1", AuthorID: "u1"}

	first, err := b.EnqueueJob(ctx, p, 0)
	require.NoError(t, err)
	second, err := b.EnqueueJob(ctx, p, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBroker_WakesOnlyForImmediateJobs(t *testing.T) {
	b, _ := newBroker(t)
	ctx := context.Background()

	_, err := b.Enqueue(ctx, domain.JobNewPost, []byte(`{}`), time.Minute, queue.EnqueueOptions{})
	require.NoError(t, err)
	select {
	case <-b.Wake():
		t.Fatal("delayed job must not wake the scheduler")
	default:
	}

	_, err = b.Enqueue(ctx, domain.JobNewPost, []byte(`{}`), 0, queue.EnqueueOptions{})
	require.NoError(t, err)
	select {
	case <-b.Wake():
	default:
		t.Fatal("expected a wake signal for an immediately eligible job")
	}
}

func TestBroker_EnqueuePropagatesStoreErrors(t *testing.T) {
	b, repo := newBroker(t)
	repo.InsertErr = errors.New("connection refused")

	_, err := b.Enqueue(context.Background(), domain.JobNewPost, []byte(`{}`), 0, queue.EnqueueOptions{})
	assert.Error(t, err)
}

func TestBroker_SubscribeAndLookup(t *testing.T) {
	b, _ := newBroker(t)
	_, ok := b.Handler(domain.JobNewComment)
	assert.False(t, ok)

	b.Subscribe(domain.JobNewComment, func(context.Context, *domain.Job) error { return nil })
	_, ok = b.Handler(domain.JobNewComment)
	assert.True(t, ok)
}

func TestTyped_DecodesPayload(t *testing.T) {
	var got domain.NewCommentPayload
	h := queue.Typed(func(_ context.Context, _ *domain.Job, p domain.NewCommentPayload) error {
		got = p
		return nil
	})

	job := &domain.Job{Type: domain.JobNewComment, Payload: []byte(`{"comment_id":"c","post_id":"p","comment_author_id":"u"}`)}
	require.NoError(t, h(context.Background(), job))
	assert.Equal(t, domain.NewCommentPayload{CommentID: "c", PostID: "p", CommentAuthorID: "u"}, got)
}

func TestTyped_WrongVariantIsPermanent(t *testing.T) {
	h := queue.Typed(func(context.Context, *domain.Job, domain.NewCommentPayload) error {
		t.Fatal("handler must not run")
		return nil
	})

	job := &domain.Job{Type: domain.JobNewPost, Payload: []byte(`{"post_id":"p"}`)}
	err := h(context.Background(), job)
	assert.True(t, domain.IsPermanent(err))

	job = &domain.Job{Type: domain.JobNewComment, Payload: []byte(`not json`)}
	err = h(context.Background(), job)
	assert.True(t, domain.IsPermanent(err))
}
