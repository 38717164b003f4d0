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

type pgUserRepository struct {
	pool *pgxpool.Pool
}

// NewPgUserRepository returns a UserRepository backed by PostgreSQL.
func NewPgUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepository{pool: pool}
}

func (r *pgUserRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.Username, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.created_at,
		       ARRAY(SELECT f.follower_id FROM follows f WHERE f.followee_id = u.id ORDER BY f.created_at),
		       ARRAY(SELECT f.followee_id FROM follows f WHERE f.follower_id = u.id ORDER BY f.created_at)
		FROM users u WHERE u.id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt, &u.Followers, &u.Following)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *pgUserRepository) GetSummaries(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	result := make(map[string]domain.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := psql.Select("id", "username").
		From("users").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user summary query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get user summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.Username); err != nil {
			return nil, err
		}
		result[s.ID] = s
	}
	return result, rows.Err()
}

func (r *pgUserRepository) ListSummaries(ctx context.Context, excludeID string) ([]domain.UserSummary, error) {
	builder := psql.Select("id", "username").From("users").OrderBy("created_at ASC", "id ASC")
	if excludeID != "" {
		builder = builder.Where(sq.NotEq{"id": excludeID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := []domain.UserSummary{}
	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.Username); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *pgUserRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *pgUserRepository) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, followerID, followeeID)
	switch {
	case isForeignKeyViolation(err):
		return false, domain.ErrNotFound
	case isCheckViolation(err):
		return false, domain.ErrSelfFollow
	case err != nil:
		return false, fmt.Errorf("insert follow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgUserRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("delete follow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
