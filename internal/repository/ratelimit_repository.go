package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepository stores fixed-window counters, one row per
// (key, window_start).
type RateLimitRepository struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepository(pool *pgxpool.Pool) *RateLimitRepository {
	return &RateLimitRepository{pool: pool}
}

func (r *RateLimitRepository) Increment(ctx context.Context, key string, windowStart time.Time) (int, error) {
	const query = `
		INSERT INTO rate_limit_windows (key, window_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (key, window_start)
		DO UPDATE SET count = rate_limit_windows.count + 1
		RETURNING count
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, key, windowStart).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM rate_limit_windows WHERE window_start < $1`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
