package repository

import (
	"context"
	"slices"
	"time"

	"github.com/ricirt/feedhub/internal/domain"
)

// The pgx implementations live in pg_*_repo.go.
// Tests use the hand-written in-memory mocks (mock_*_repo.go).

// SortOrder selects the created_at ordering of a listing.
type SortOrder int

const (
	NewestFirst SortOrder = iota
	OldestFirst
)

// PostFilter narrows a post listing. A nil AuthorIDs matches every author;
// an empty non-nil slice matches none.
type PostFilter struct {
	AuthorIDs []string
	Limit     uint64
}

// UserRepository stores users and the follows relation. Follow and Unfollow
// mutate a single edge, so both sides of the relation change together.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetSummaries(ctx context.Context, ids []string) (map[string]domain.UserSummary, error)
	ListSummaries(ctx context.Context, excludeID string) ([]domain.UserSummary, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	// Follow reports whether a new edge was created.
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	// Unfollow reports whether an existing edge was removed.
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
}

// PostRepository stores posts and their like sets. Posts are always
// returned newest first.
type PostRepository interface {
	// Insert reports false when a post with the same id already exists.
	Insert(ctx context.Context, p *domain.Post) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	Find(ctx context.Context, f PostFilter) ([]*domain.Post, error)
	UpdateContent(ctx context.Context, id, content string, image *string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// AddLike and RemoveLike are atomic set operations. They report whether
	// the set changed and its cardinality afterwards.
	AddLike(ctx context.Context, postID, userID string) (bool, int, error)
	RemoveLike(ctx context.Context, postID, userID string) (bool, int, error)
}

// CommentRepository stores comments. Deleting a post removes its comments.
type CommentRepository interface {
	Create(ctx context.Context, c *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	ListByPost(ctx context.Context, postID string, order SortOrder) ([]*domain.Comment, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
}

// JobRepository is the durable side of the job queue.
type JobRepository interface {
	// Insert stores a waiting job. When the job carries an idempotency key that
	// is already taken it returns the existing job's id and false.
	Insert(ctx context.Context, j *domain.Job) (string, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	// ClaimDue moves up to limit waiting jobs whose eligible_at has passed to
	// active, leasing them until now+lease.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.Job, error)
	// Release returns a claimed job to waiting without counting an attempt.
	Release(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, at time.Time) error
	Fail(ctx context.Context, id string, f domain.JobFailure) error
	// RequeueExpired returns active jobs whose lease has lapsed to waiting,
	// counting the lapse as a failed attempt. It returns the number of jobs
	// touched.
	RequeueExpired(ctx context.Context, now time.Time) (int, error)
	ListDeadLettered(ctx context.Context, limit int) ([]*domain.Job, error)
}

func sortByEligibility(jobs []*domain.Job) {
	slices.SortStableFunc(jobs, func(a, b *domain.Job) int {
		if c := a.EligibleAt.Compare(b.EligibleAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
