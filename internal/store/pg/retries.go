package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
)

// RetryRepo implementa repository.RetryRepository con upserts atómicos.
type RetryRepo struct {
	pool *pgxpool.Pool
}

// NewRetryRepo crea el ledger de reintentos.
func NewRetryRepo(pool *pgxpool.Pool) *RetryRepo {
	return &RetryRepo{pool: pool}
}

func (r *RetryRepo) Increment(ctx context.Context, username string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_retries (username, retry_count) VALUES ($1, 1)
		ON CONFLICT (username) DO UPDATE SET retry_count = user_retries.retry_count + 1
		RETURNING retry_count`, repository.NormalizeUsername(username)).Scan(&n)
	return n, err
}

func (r *RetryRepo) Reset(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_retries (username, retry_count, reset_at) VALUES ($1, 0, $2)
		ON CONFLICT (username) DO UPDATE SET retry_count = 0, reset_at = EXCLUDED.reset_at`,
		repository.NormalizeUsername(username), time.Now().UTC())
	return err
}

func (r *RetryRepo) Get(ctx context.Context, username string) (repository.UserRetries, error) {
	key := repository.NormalizeUsername(username)
	out := repository.UserRetries{Username: key}
	var resetAt *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT retry_count, reset_at FROM user_retries WHERE username = $1`, key).Scan(&out.Count, &resetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.ResetAt = derefTime(resetAt)
	return out, nil
}
