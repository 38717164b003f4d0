package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/feedhub/internal/domain"
)

// postColumns materialises the like set and the ordered comment ids with
// each post row.
var postColumns = []string{
	"p.id", "p.author_id", "p.content", "p.image", "p.created_at", "p.updated_at",
	"ARRAY(SELECT l.user_id FROM post_likes l WHERE l.post_id = p.id ORDER BY l.created_at, l.user_id)",
	"ARRAY(SELECT c.id FROM comments c WHERE c.post_id = p.id ORDER BY c.created_at, c.id)",
}

type pgPostRepository struct {
	pool *pgxpool.Pool
}

// NewPgPostRepository returns a PostRepository backed by PostgreSQL.
func NewPgPostRepository(pool *pgxpool.Pool) PostRepository {
	return &pgPostRepository{pool: pool}
}

func (r *pgPostRepository) Insert(ctx context.Context, p *domain.Post) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO posts (id, author_id, content, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.AuthorID, p.Content, p.Image, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgPostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	query, args, err := psql.Select(postColumns...).
		From("posts p").
		Where(sq.Eq{"p.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build post query: %w", err)
	}

	p, err := scanPost(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (r *pgPostRepository) Find(ctx context.Context, f PostFilter) ([]*domain.Post, error) {
	builder := psql.Select(postColumns...).
		From("posts p").
		OrderBy("p.created_at DESC", "p.id DESC")
	if f.AuthorIDs != nil {
		builder = builder.Where(sq.Eq{"p.author_id": f.AuthorIDs})
	}
	if f.Limit > 0 {
		builder = builder.Limit(f.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build post listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer rows.Close()

	posts := []*domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *pgPostRepository) UpdateContent(ctx context.Context, id, content string, image *string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE posts
		SET content = $2, image = COALESCE($3, image), updated_at = $4
		WHERE id = $1`, id, content, image, at)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgPostRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddLike inserts the (post, user) pair and counts the set in one statement.
// The count sub-select runs on the statement snapshot, which does not yet
// include the inserted row.
func (r *pgPostRepository) AddLike(ctx context.Context, postID, userID string) (bool, int, error) {
	var inserted, existing int
	err := r.pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
			RETURNING 1
		)
		SELECT (SELECT COUNT(*) FROM ins), (SELECT COUNT(*) FROM post_likes WHERE post_id = $1)`,
		postID, userID,
	).Scan(&inserted, &existing)
	if isForeignKeyViolation(err) {
		return false, 0, domain.ErrNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("add like: %w", err)
	}
	return inserted == 1, existing + inserted, nil
}

func (r *pgPostRepository) RemoveLike(ctx context.Context, postID, userID string) (bool, int, error) {
	var (
		exists          bool
		deleted, before int
	)
	err := r.pool.QueryRow(ctx, `
		WITH del AS (
			DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1),
		       (SELECT COUNT(*) FROM del),
		       (SELECT COUNT(*) FROM post_likes WHERE post_id = $1)`,
		postID, userID,
	).Scan(&exists, &deleted, &before)
	if err != nil {
		return false, 0, fmt.Errorf("remove like: %w", err)
	}
	if !exists {
		return false, 0, domain.ErrNotFound
	}
	return deleted == 1, before - deleted, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	if err := row.Scan(
		&p.ID, &p.AuthorID, &p.Content, &p.Image, &p.CreatedAt, &p.UpdatedAt,
		&p.Likes, &p.Comments,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
