package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/repository"
	"github.com/ricirt/feedhub/internal/timeline"
)

// CommentService handles comments. The post author's notification is sent by
// a new-comment job, not on the request path.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	authors  *timeline.AuthorCache
	broker   *queue.Broker
	logger   *zap.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	authors *timeline.AuthorCache,
	broker *queue.Broker,
	logger *zap.Logger,
) *CommentService {
	return &CommentService{
		comments: comments, posts: posts, users: users,
		authors: authors, broker: broker, logger: logger,
	}
}

// AddComment stores the comment and queues the author notification. A failure
// to queue is logged, not returned: the comment itself was saved.
func (s *CommentService) AddComment(ctx context.Context, postID, authorID, content string) (*domain.Comment, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	c := &domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}

	payload := domain.NewCommentPayload{CommentID: c.ID, PostID: postID, CommentAuthorID: authorID}
	if _, err := s.broker.EnqueueJob(ctx, payload, 0); err != nil {
		s.logger.Error("failed to enqueue comment notification",
			zap.String("comment_id", c.ID), zap.Error(err))
	}
	return c, nil
}

// ListByPost returns the comments of a post newest first.
func (s *CommentService) ListByPost(ctx context.Context, postID string) ([]domain.CommentView, error) {
	comments, err := s.comments.ListByPost(ctx, postID, repository.NewestFirst)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := s.authors.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	return timeline.CommentViews(comments, authors), nil
}

// Update replaces a comment's content. Only its author may do this.
func (s *CommentService) Update(ctx context.Context, commentID, userID, content string) (*domain.Comment, error) {
	c, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, domain.ErrForbidden
	}
	content, err = cleanContent(content)
	if err != nil {
		return nil, err
	}
	if err := s.comments.UpdateContent(ctx, commentID, content); err != nil {
		return nil, err
	}
	c.Content = content
	return c, nil
}

// Delete removes a comment. Only its author may do this.
func (s *CommentService) Delete(ctx context.Context, commentID, userID string) error {
	c, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != userID {
		return domain.ErrForbidden
	}
	return s.comments.Delete(ctx, commentID)
}
