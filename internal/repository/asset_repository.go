package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/At4lian/VQCC/internal/models"
)

var ErrAssetNotFound = errors.New("asset not found")

const assetColumns = `
	id, owner_id, original_name, content_type, declared_size_bytes, verified_size_bytes,
	bucket, object_key, status, etag, last_error, created_at, uploaded_at, failed_at, updated_at
`

type AssetRepository struct {
	pool *pgxpool.Pool
}

func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// CreateWithinCap inserts an UPLOADING asset unless its owner already has
// maxActive uploads in flight, in which case it reports false. Inits of the
// same owner are serialized by a transaction-scoped advisory lock, so the
// count and the insert cannot interleave. maxActive <= 0 disables the cap.
func (r *AssetRepository) CreateWithinCap(ctx context.Context, asset models.Asset, maxActive int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if maxActive > 0 {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, asset.OwnerID); err != nil {
			return false, err
		}

		const countQuery = `SELECT COUNT(*) FROM assets WHERE owner_id = $1 AND status = 'UPLOADING'`
		var active int
		if err := tx.QueryRow(ctx, countQuery, asset.OwnerID).Scan(&active); err != nil {
			return false, err
		}
		if active >= maxActive {
			return false, nil
		}
	}

	const query = `
		INSERT INTO assets (
			id, owner_id, original_name, content_type, declared_size_bytes,
			bucket, object_key, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
	`
	if _, err := tx.Exec(ctx, query,
		asset.ID,
		asset.OwnerID,
		asset.OriginalName,
		asset.ContentType,
		asset.DeclaredSizeBytes,
		asset.Bucket,
		asset.ObjectKey,
		asset.Status,
		asset.CreatedAt,
	); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *AssetRepository) GetByID(ctx context.Context, id string) (models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	asset, err := scanAsset(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, ErrAssetNotFound
		}
		return models.Asset{}, err
	}
	return asset, nil
}

// MarkUploaded moves an UPLOADING asset to UPLOADED. It reports false when
// the asset was no longer UPLOADING at the time of the write.
func (r *AssetRepository) MarkUploaded(ctx context.Context, id string, sizeBytes int64, etag *string, at time.Time) (bool, error) {
	const query = `
		UPDATE assets
		SET status = 'UPLOADED',
		    verified_size_bytes = $2,
		    etag = $3,
		    uploaded_at = $4,
		    last_error = NULL,
		    updated_at = $4
		WHERE id = $1 AND status = 'UPLOADING'
	`
	cmd, err := r.pool.Exec(ctx, query, id, sizeBytes, etag, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkFailed moves an UPLOADING asset to FAILED. It reports false when the
// asset was no longer UPLOADING at the time of the write.
func (r *AssetRepository) MarkFailed(ctx context.Context, id string, reason string, at time.Time) (bool, error) {
	const query = `
		UPDATE assets
		SET status = 'FAILED',
		    last_error = $2,
		    failed_at = $3,
		    updated_at = $3
		WHERE id = $1 AND status = 'UPLOADING'
	`
	cmd, err := r.pool.Exec(ctx, query, id, reason, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// ListStaleUploading returns the oldest UPLOADING assets created before cutoff.
func (r *AssetRepository) ListStaleUploading(ctx context.Context, cutoff time.Time, limit int) ([]models.Asset, error) {
	query := `SELECT ` + assetColumns + `
		FROM assets
		WHERE status = 'UPLOADING' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func scanAsset(row pgx.Row) (models.Asset, error) {
	var asset models.Asset
	err := row.Scan(
		&asset.ID,
		&asset.OwnerID,
		&asset.OriginalName,
		&asset.ContentType,
		&asset.DeclaredSizeBytes,
		&asset.VerifiedSizeBytes,
		&asset.Bucket,
		&asset.ObjectKey,
		&asset.Status,
		&asset.ETag,
		&asset.LastError,
		&asset.CreatedAt,
		&asset.UploadedAt,
		&asset.FailedAt,
		&asset.UpdatedAt,
	)
	return asset, err
}
