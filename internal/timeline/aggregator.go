package timeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/repository"
)

// UnknownAuthor labels a comment whose author no longer resolves.
const UnknownAuthor = "Unknown"

// Aggregator composes read models of posts for a viewer. It is pull-based and
// read-only: nothing here waits on the job queue.
type Aggregator struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	authors  *AuthorCache
	logger   *zap.Logger
}

func NewAggregator(
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	authors *AuthorCache,
	logger *zap.Logger,
) *Aggregator {
	return &Aggregator{users: users, posts: posts, comments: comments, authors: authors, logger: logger}
}

// GetTimeline returns the posts of viewerID and of everyone they follow,
// newest first, each marked with whether the viewer liked it. A post whose
// author cannot be resolved is left out rather than failing the request.
func (a *Aggregator) GetTimeline(ctx context.Context, viewerID string) ([]domain.PostView, error) {
	viewer, err := a.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]string, 0, len(viewer.Following)+1)
	authorIDs = append(authorIDs, viewer.Following...)
	authorIDs = append(authorIDs, viewerID)

	posts, err := a.posts.Find(ctx, repository.PostFilter{AuthorIDs: authorIDs})
	if err != nil {
		return nil, fmt.Errorf("load timeline posts: %w", err)
	}
	return a.project(ctx, posts, viewerID)
}

// ListAll returns every post newest first, up to limit (0 = no limit).
func (a *Aggregator) ListAll(ctx context.Context, viewerID string, limit uint64) ([]domain.PostView, error) {
	posts, err := a.posts.Find(ctx, repository.PostFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	return a.project(ctx, posts, viewerID)
}

// ListByAuthor returns the posts of authorID newest first.
func (a *Aggregator) ListByAuthor(ctx context.Context, authorID, viewerID string) ([]domain.PostView, error) {
	posts, err := a.posts.Find(ctx, repository.PostFilter{AuthorIDs: []string{authorID}})
	if err != nil {
		return nil, fmt.Errorf("load posts by author: %w", err)
	}
	return a.project(ctx, posts, viewerID)
}

// GetPost returns one post with its comments, oldest first.
func (a *Aggregator) GetPost(ctx context.Context, postID, viewerID string) (*domain.PostView, error) {
	post, err := a.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments, err := a.comments.ListByPost(ctx, postID, repository.OldestFirst)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	ids := make([]string, 0, len(comments)+1)
	ids = append(ids, post.AuthorID)
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := a.authors.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve authors: %w", err)
	}

	author, ok := authors[post.AuthorID]
	if !ok {
		// A post without a resolvable author is treated as gone.
		a.logger.Warn("post author not found", zap.String("post_id", post.ID), zap.String("author_id", post.AuthorID))
		return nil, domain.ErrNotFound
	}

	view := domain.NewPostView(post, author, viewerID)
	view.Comments = CommentViews(comments, authors)
	return &view, nil
}

// CommentViews annotates comments with their authors, labelling unresolved
// ones UnknownAuthor.
func CommentViews(comments []*domain.Comment, authors map[string]domain.UserSummary) []domain.CommentView {
	views := make([]domain.CommentView, 0, len(comments))
	for _, c := range comments {
		author, ok := authors[c.AuthorID]
		if !ok {
			author = domain.UserSummary{ID: c.AuthorID, Username: UnknownAuthor}
		}
		views = append(views, domain.CommentView{
			ID:        c.ID,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
			Author:    author,
		})
	}
	return views
}

// project turns posts into views for viewerID, dropping posts whose author
// does not resolve. The input order is preserved. The result is never nil.
func (a *Aggregator) project(ctx context.Context, posts []*domain.Post, viewerID string) ([]domain.PostView, error) {
	views := make([]domain.PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	authors, err := a.authors.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve authors: %w", err)
	}

	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			a.logger.Warn("skipping post with unresolved author",
				zap.String("post_id", p.ID),
				zap.String("author_id", p.AuthorID),
			)
			continue
		}
		views = append(views, domain.NewPostView(p, author, viewerID))
	}
	return views, nil
}
