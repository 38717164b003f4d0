package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/feedhub/internal/domain"
)

const jobColumns = `id, type, payload, idempotency_key, state, attempts, max_attempts,
	last_error, eligible_at, lease_expires_at, completed_at, created_at, updated_at`

type pgJobRepository struct {
	pool *pgxpool.Pool
}

// NewPgJobRepository returns a JobRepository backed by PostgreSQL.
func NewPgJobRepository(pool *pgxpool.Pool) JobRepository {
	return &pgJobRepository{pool: pool}
}

func (r *pgJobRepository) Insert(ctx context.Context, j *domain.Job) (string, bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO jobs
			(id, type, payload, idempotency_key, state, attempts, max_attempts,
			 eligible_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`,
		j.ID, j.Type, j.Payload, j.IdempotencyKey, j.State, j.Attempts, j.MaxAttempts,
		j.EligibleAt, j.CreatedAt, j.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || j.IdempotencyKey == nil {
		return "", false, fmt.Errorf("insert job: %w", err)
	}

	// The idempotency key is taken; hand back the job that owns it.
	err = r.pool.QueryRow(ctx,
		`SELECT id FROM jobs WHERE idempotency_key = $1`, *j.IdempotencyKey).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("find job by idempotency key: %w", err)
	}
	return id, false, nil
}

func (r *pgJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// claimDueSQL leases due jobs. SKIP LOCKED lets several schedulers poll the
// same table without handing out a job twice.
const claimDueSQL = `
	WITH cte AS (
		SELECT id FROM jobs
		WHERE state = 'waiting' AND eligible_at <= $1
		ORDER BY eligible_at ASC, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE jobs j
	SET state = 'active', lease_expires_at = $3, updated_at = $1
	FROM cte
	WHERE j.id = cte.id
	RETURNING j.id, j.type, j.payload, j.idempotency_key, j.state, j.attempts, j.max_attempts,
		j.last_error, j.eligible_at, j.lease_expires_at, j.completed_at, j.created_at, j.updated_at`

func (r *pgJobRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, claimDueSQL, now, limit, now.Add(lease))
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan claimed jobs: %w", err)
	}
	// RETURNING order is unspecified.
	sortByEligibility(jobs)
	return jobs, nil
}

func (r *pgJobRepository) Release(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'waiting', lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND state = 'active'`, id)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

func (r *pgJobRepository) Complete(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'completed', completed_at = $2, lease_expires_at = NULL, updated_at = $2
		WHERE id = $1 AND state = 'active'`, id, at)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (r *pgJobRepository) Fail(ctx context.Context, id string, f domain.JobFailure) error {
	var err error
	if f.DeadLetter {
		_, err = r.pool.Exec(ctx, `
			UPDATE jobs
			SET state = 'dead_lettered', attempts = attempts + 1, last_error = $2,
			    lease_expires_at = NULL, updated_at = NOW()
			WHERE id = $1 AND state = 'active'`, id, f.Error)
	} else {
		_, err = r.pool.Exec(ctx, `
			UPDATE jobs
			SET state = 'waiting', attempts = attempts + 1, last_error = $2,
			    eligible_at = $3, lease_expires_at = NULL, updated_at = NOW()
			WHERE id = $1 AND state = 'active'`, id, f.Error, f.RetryAt)
	}
	if err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}
	return nil
}

func (r *pgJobRepository) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = CASE WHEN attempts + 1 > max_attempts THEN 'dead_lettered' ELSE 'waiting' END,
		    attempts = attempts + 1,
		    last_error = 'lease expired',
		    eligible_at = $1,
		    lease_expires_at = NULL,
		    updated_at = $1
		WHERE state = 'active' AND lease_expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("requeue expired jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgJobRepository) ListDeadLettered(ctx context.Context, limit int) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = 'dead_lettered'
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead-lettered jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ---- helpers ----

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &j.IdempotencyKey, &j.State,
		&j.Attempts, &j.MaxAttempts, &j.LastError,
		&j.EligibleAt, &j.LeaseExpiresAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	result := []*domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}
