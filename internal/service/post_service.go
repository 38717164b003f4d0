package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/notify"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/ratelimiter"
	"github.com/ricirt/feedhub/internal/repository"
)

// CreatePostRequest is the body of a deferred post creation.
type CreatePostRequest struct {
	Content string  `json:"content"`
	Image   *string `json:"image,omitempty"`
}

// CreatePostAck acknowledges a deferred post. The post does not exist yet;
// PostID is the id it will have once the job runs.
type CreatePostAck struct {
	JobID   string `json:"job_id"`
	PostID  string `json:"post_id"`
	Message string `json:"message"`
}

// PostService handles post writes and likes. Reads go through the timeline
// aggregator.
type PostService struct {
	posts         repository.PostRepository
	users         repository.UserRepository
	broker        *queue.Broker
	notifier      *notify.Dispatcher
	limiter       *ratelimiter.KeyedLimiters
	delay         time.Duration
	logger        *zap.Logger
	onRateLimited func()
}

// NewPostService builds the service. onRateLimited is optional (nil = no-op).
func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	broker *queue.Broker,
	notifier *notify.Dispatcher,
	limiter *ratelimiter.KeyedLimiters,
	delay time.Duration,
	logger *zap.Logger,
	onRateLimited func(),
) *PostService {
	if onRateLimited == nil {
		onRateLimited = func() {}
	}
	return &PostService{
		posts: posts, users: users, broker: broker, notifier: notifier,
		limiter: limiter, delay: delay, logger: logger,
		onRateLimited: onRateLimited,
	}
}

// EnqueueCreatePost validates the request and defers the actual insert to a
// create-post job. It returns as soon as the job is stored.
func (s *PostService) EnqueueCreatePost(ctx context.Context, userID string, req CreatePostRequest) (*CreatePostAck, error) {
	content, err := cleanContent(req.Content)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if !s.limiter.Allow(userID) {
		s.onRateLimited()
		return nil, domain.ErrRateLimited
	}

	payload := domain.CreatePostPayload{
		PostID:  uuid.NewString(),
		UserID:  userID,
		Content: content,
		Image:   req.Image,
	}
	jobID, err := s.broker.EnqueueJob(ctx, payload, s.delay)
	if err != nil {
		return nil, err
	}

	return &CreatePostAck{
		JobID:   jobID,
		PostID:  payload.PostID,
		Message: fmt.Sprintf("Post will be created in %s", humanDelay(s.delay)),
	}, nil
}

// Like adds userID to the post's like set. Only a new like notifies the
// author; likes on one's own post are not excluded.
func (s *PostService) Like(ctx context.Context, postID, userID string) (*domain.LikeResult, error) {
	liker, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	added, count, err := s.posts.AddLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if added {
		s.notifier.Dispatch(ctx, domain.Notification{
			RecipientID: post.AuthorID,
			ActorID:     userID,
			Kind:        domain.NotificationLike,
			Message:     domain.LikeMessage(liker.Username),
		})
	}
	return &domain.LikeResult{Liked: true, LikeCount: count}, nil
}

// Unlike removes userID from the post's like set. Unliking a post that was
// not liked is a no-op.
func (s *PostService) Unlike(ctx context.Context, postID, userID string) (*domain.LikeResult, error) {
	_, count, err := s.posts.RemoveLike(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	return &domain.LikeResult{Liked: false, LikeCount: count}, nil
}

// Update replaces the content (and optionally the image) of a post. Only the
// author may do this.
func (s *PostService) Update(ctx context.Context, postID, userID string, req CreatePostRequest) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, domain.ErrForbidden
	}
	content, err := cleanContent(req.Content)
	if err != nil {
		return nil, err
	}

	if err := s.posts.UpdateContent(ctx, postID, content, req.Image, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, postID)
}

// Delete removes a post and its comments. Only the author may do this.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return domain.ErrForbidden
	}
	return s.posts.Delete(ctx, postID)
}

func humanDelay(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}
