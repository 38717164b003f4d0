package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/idempotency"
	"github.com/ricirt/feedhub/internal/notify"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/repository"
)

// JobHandlers holds the side effects of every job type. Each handler is safe
// to run more than once for the same job: post creation is keyed by the
// pre-assigned post id, and notifications are claimed in the idempotency
// ledger before they are sent.
type JobHandlers struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	broker   *queue.Broker
	notifier *notify.Dispatcher
	ledger   idempotency.Ledger
	logger   *zap.Logger
}

func NewJobHandlers(
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	broker *queue.Broker,
	notifier *notify.Dispatcher,
	ledger idempotency.Ledger,
	logger *zap.Logger,
) *JobHandlers {
	return &JobHandlers{
		users: users, posts: posts, comments: comments,
		broker: broker, notifier: notifier, ledger: ledger, logger: logger,
	}
}

// Register subscribes every handler on the broker.
func (h *JobHandlers) Register(b *queue.Broker) {
	b.Subscribe(domain.JobCreatePost, queue.Typed(h.CreatePost))
	b.Subscribe(domain.JobNewComment, queue.Typed(h.NewComment))
	b.Subscribe(domain.JobNewPost, queue.Typed(h.NewPost))
}

// CreatePost inserts the deferred post and queues the follower fan-out.
// A replay finds the post already inserted and the fan-out job already
// queued, and changes nothing.
func (h *JobHandlers) CreatePost(ctx context.Context, job *domain.Job, p domain.CreatePostPayload) error {
	now := time.Now().UTC()
	created, err := h.posts.Insert(ctx, &domain.Post{
		ID:        p.PostID,
		AuthorID:  p.UserID,
		Content:   p.Content,
		Image:     p.Image,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("%w: create post: %v", domain.ErrTransientJobFailure, err)
	}
	if !created {
		h.logger.Debug("post already created by an earlier delivery",
			zap.String("job_id", job.ID), zap.String("post_id", p.PostID))
	}

	if _, err := h.broker.EnqueueJob(ctx, domain.NewPostPayload{PostID: p.PostID, AuthorID: p.UserID}, 0); err != nil {
		return fmt.Errorf("%w: enqueue fan-out: %v", domain.ErrTransientJobFailure, err)
	}
	return nil
}

// NewComment notifies the post author, including when the author commented
// on their own post.
func (h *JobHandlers) NewComment(ctx context.Context, job *domain.Job, p domain.NewCommentPayload) error {
	log := h.logger.With(zap.String("job_id", job.ID), zap.String("comment_id", p.CommentID))

	if _, err := h.comments.GetByID(ctx, p.CommentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("comment deleted before notification")
			return nil
		}
		return err
	}
	post, err := h.posts.GetByID(ctx, p.PostID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("post deleted before comment notification")
			return nil
		}
		return err
	}
	commenter, err := h.users.GetByID(ctx, p.CommentAuthorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("comment author not found, notification skipped")
			return nil
		}
		return err
	}

	claimed, err := h.ledger.Claim(ctx, p.IdempotencyKey())
	if err != nil {
		return err
	}
	if !claimed {
		log.Debug("comment notification already sent")
		return nil
	}

	h.notifier.Dispatch(ctx, domain.Notification{
		RecipientID: post.AuthorID,
		ActorID:     p.CommentAuthorID,
		Kind:        domain.NotificationComment,
		Message:     domain.CommentMessage(commenter.Username),
	})
	return nil
}

// NewPost fans the post out to the author's followers with bounded
// concurrency. Each follower is claimed separately, so a replay never
// notifies the same follower twice. Claims for followers an aborted fan-out
// never reached are released so the retry delivers to them.
func (h *JobHandlers) NewPost(ctx context.Context, job *domain.Job, p domain.NewPostPayload) error {
	author, err := h.users.GetByID(ctx, p.AuthorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Permanent(fmt.Errorf("post author %s: %w", p.AuthorID, err))
		}
		return err
	}

	followers, err := h.users.FollowerIDs(ctx, p.AuthorID)
	if err != nil {
		return err
	}

	recipients := make([]string, 0, len(followers))
	for _, f := range followers {
		claimed, err := h.ledger.Claim(ctx, followerKey(p, f))
		if err != nil {
			h.release(ctx, p, recipients)
			return err
		}
		if claimed {
			recipients = append(recipients, f)
		}
	}

	res, err := h.notifier.FanOut(ctx, recipients, domain.Notification{
		ActorID: p.AuthorID,
		Kind:    domain.NotificationPost,
		Message: domain.PostMessage(author.Username),
	})
	if err != nil {
		h.release(ctx, p, res.Unattempted)
		return err
	}
	h.logger.Debug("new post fanned out",
		zap.String("job_id", job.ID),
		zap.String("post_id", p.PostID),
		zap.Int("followers", len(followers)),
		zap.Int("online", res.Delivered),
	)
	return nil
}

// release forgets the fan-out claims of followers that were not notified.
// It runs even when ctx is already cancelled.
func (h *JobHandlers) release(ctx context.Context, p domain.NewPostPayload, followers []string) {
	ctx = context.WithoutCancel(ctx)
	for _, f := range followers {
		if err := h.ledger.Forget(ctx, followerKey(p, f)); err != nil {
			h.logger.Warn("failed to release fan-out claim",
				zap.String("post_id", p.PostID),
				zap.String("follower_id", f),
				zap.Error(err),
			)
		}
	}
}

func followerKey(p domain.NewPostPayload, followerID string) string {
	return p.IdempotencyKey() + ":" + followerID
}
