package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/feedhub/internal/domain"
)

type pgCommentRepository struct {
	pool *pgxpool.Pool
}

// NewPgCommentRepository returns a CommentRepository backed by PostgreSQL.
func NewPgCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &pgCommentRepository{pool: pool}
}

func (r *pgCommentRepository) Create(ctx context.Context, c *domain.Comment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO comments (id, post_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.AuthorID, c.Content, c.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *pgCommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	var c domain.Comment
	err := r.pool.QueryRow(ctx, `
		SELECT id, post_id, author_id, content, created_at
		FROM comments WHERE id = $1`, id,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &c, nil
}

func (r *pgCommentRepository) ListByPost(ctx context.Context, postID string, order SortOrder) ([]*domain.Comment, error) {
	builder := psql.Select("id", "post_id", "author_id", "content", "created_at").
		From("comments").
		Where(sq.Eq{"post_id": postID})
	if order == OldestFirst {
		builder = builder.OrderBy("created_at ASC", "id ASC")
	} else {
		builder = builder.OrderBy("created_at DESC", "id DESC")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comment listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func (r *pgCommentRepository) UpdateContent(ctx context.Context, id, content string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE comments SET content = $2 WHERE id = $1`, id, content)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgCommentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
