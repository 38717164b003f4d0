package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/repository"
)

func newJob(delay time.Duration, key string) *domain.Job {
	now := time.Now().UTC()
	j := &domain.Job{
		ID:          uuid.NewString(),
		Type:        domain.JobNewPost,
		Payload:     []byte(`{}`),
		State:       domain.JobWaiting,
		MaxAttempts: 2,
		EligibleAt:  now.Add(delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if key != "" {
		j.IdempotencyKey = &key
	}
	return j
}

func TestMockJobRepository_InsertIdempotencyKey(t *testing.T) {
	repo := repository.NewMockJobRepository()
	ctx := context.Background()

	first := newJob(0, "new-post:p1")
	id, created, err := repo.Insert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := repo.Insert(ctx, newJob(0, "new-post:p1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, id2)
}

func TestMockJobRepository_ClaimDueRespectsEligibility(t *testing.T) {
	repo := repository.NewMockJobRepository()
	ctx := context.Background()

	due := newJob(0, "")
	later := newJob(time.Hour, "")
	_, _, _ = repo.Insert(ctx, due)
	_, _, _ = repo.Insert(ctx, later)

	claimed, err := repo.ClaimDue(ctx, time.Now().UTC(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, domain.JobActive, claimed[0].State)

	again, err := repo.ClaimDue(ctx, time.Now().UTC(), time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "an active job must not be claimed twice")
}

func TestMockJobRepository_ConcurrentClaimsAreExclusive(t *testing.T) {
	repo := repository.NewMockJobRepository()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		_, _, _ = repo.Insert(ctx, newJob(0, ""))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimDue(ctx, time.Now().UTC(), time.Minute, 20)
			assert.NoError(t, err)
			mu.Lock()
			for _, j := range claimed {
				seen[j.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestMockJobRepository_RequeueExpiredDeadLettersWhenExhausted(t *testing.T) {
	repo := repository.NewMockJobRepository()
	ctx := context.Background()

	j := newJob(0, "")
	j.MaxAttempts = 0
	_, _, _ = repo.Insert(ctx, j)
	_, err := repo.ClaimDue(ctx, time.Now().UTC(), time.Minute, 1)
	require.NoError(t, err)

	repo.Expire(j.ID)
	n, err := repo.RequeueExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDeadLettered, got.State)
	assert.Equal(t, 1, got.Attempts)
}

func TestMockUserRepository_FollowIsSymmetric(t *testing.T) {
	repo := repository.NewMockUserRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "a", Username: "alice"}))
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "b", Username: "bob"}))

	changed, err := repo.Follow(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, changed)

	a, _ := repo.GetByID(ctx, "a")
	b, _ := repo.GetByID(ctx, "b")
	assert.Equal(t, []string{"b"}, a.Following)
	assert.Equal(t, []string{"a"}, b.Followers)

	changed, err = repo.Follow(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.Follow(ctx, "a", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMockPostRepository_ConcurrentLikesDoNotDoubleCount(t *testing.T) {
	repo := repository.NewMockPostRepository()
	ctx := context.Background()
	_, err := repo.Insert(ctx, &domain.Post{ID: "p", AuthorID: "a", Content: "hi", CreatedAt: time.Now()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = repo.AddLike(ctx, "p", "u")
		}()
	}
	wg.Wait()

	p, err := repo.GetByID(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, p.Likes)
}

func TestMockCommentRepository_TracksPostComments(t *testing.T) {
	posts := repository.NewMockPostRepository()
	comments := repository.NewMockCommentRepository(posts)
	ctx := context.Background()
	_, _ = posts.Insert(ctx, &domain.Post{ID: "p", AuthorID: "a", Content: "hi", CreatedAt: time.Now()})

	err := comments.Create(ctx, &domain.Comment{ID: "c1", PostID: "missing", AuthorID: "b", Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, comments.Create(ctx, &domain.Comment{ID: "c1", PostID: "p", AuthorID: "b", Content: "x"}))
	p, _ := posts.GetByID(ctx, "p")
	assert.Equal(t, []string{"c1"}, p.Comments)

	require.NoError(t, comments.Delete(ctx, "c1"))
	p, _ = posts.GetByID(ctx, "p")
	assert.Empty(t, p.Comments)
}
