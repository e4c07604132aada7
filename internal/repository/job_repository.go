package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/At4lian/VQCC/internal/models"
)

var ErrJobNotFound = errors.New("analysis job not found")

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job models.AnalysisJob) error {
	const query = `
		INSERT INTO analysis_jobs (id, owner_id, asset_id, status, requested, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	requested := make([]string, len(job.Requested))
	for i, k := range job.Requested {
		requested[i] = string(k)
	}

	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.AssetID,
		job.Status,
		requested,
		job.CreatedAt,
	)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (models.AnalysisJob, error) {
	const query = `
		SELECT id, owner_id, asset_id, status, requested, result, error_message,
		       created_at, started_at, finished_at
		FROM analysis_jobs WHERE id = $1
	`

	var (
		job       models.AnalysisJob
		requested []string
		result    []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.OwnerID,
		&job.AssetID,
		&job.Status,
		&requested,
		&result,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AnalysisJob{}, ErrJobNotFound
		}
		return models.AnalysisJob{}, err
	}

	job.Requested = make([]models.CheckKind, len(requested))
	for i, k := range requested {
		job.Requested[i] = models.CheckKind(k)
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	return job, nil
}

// Claim is the compare-and-swap QUEUED -> RUNNING. Exactly one concurrent
// caller observes true for a given job.
func (r *JobRepository) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE analysis_jobs
		SET status = 'RUNNING', started_at = $2
		WHERE id = $1 AND status = 'QUEUED'
	`
	return r.execAffected(ctx, query, id, at)
}

// Complete moves a RUNNING job to COMPLETED and clears any earlier error.
func (r *JobRepository) Complete(ctx context.Context, id string, result json.RawMessage, at time.Time) (bool, error) {
	const query = `
		UPDATE analysis_jobs
		SET status = 'COMPLETED', result = $2, error_message = NULL, finished_at = $3
		WHERE id = $1 AND status = 'RUNNING'
	`
	return r.execAffected(ctx, query, id, []byte(result), at)
}

// Fail moves a RUNNING job to FAILED.
func (r *JobRepository) Fail(ctx context.Context, id string, message string, at time.Time) (bool, error) {
	const query = `
		UPDATE analysis_jobs
		SET status = 'FAILED', error_message = $2, finished_at = $3
		WHERE id = $1 AND status = 'RUNNING'
	`
	return r.execAffected(ctx, query, id, message, at)
}

// FailQueued force-fails a job that never reached a worker.
func (r *JobRepository) FailQueued(ctx context.Context, id string, message string, at time.Time) (bool, error) {
	const query = `
		UPDATE analysis_jobs
		SET status = 'FAILED', error_message = $2, finished_at = $3
		WHERE id = $1 AND status = 'QUEUED'
	`
	return r.execAffected(ctx, query, id, message, at)
}

func (r *JobRepository) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
