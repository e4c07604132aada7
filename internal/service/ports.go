package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/ratelimit"
	"github.com/At4lian/VQCC/internal/storage"
)

// AssetStore persists assets. CreateWithinCap and the Mark* methods are
// conditional writes that report whether they happened.
type AssetStore interface {
	CreateWithinCap(ctx context.Context, asset models.Asset, maxActive int) (bool, error)
	GetByID(ctx context.Context, id string) (models.Asset, error)
	MarkUploaded(ctx context.Context, id string, sizeBytes int64, etag *string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) (bool, error)
	ListStaleUploading(ctx context.Context, cutoff time.Time, limit int) ([]models.Asset, error)
}

// JobStore persists analysis jobs. Every transition is a compare-and-swap
// on the current status and reports whether it applied.
type JobStore interface {
	Create(ctx context.Context, job models.AnalysisJob) error
	GetByID(ctx context.Context, id string) (models.AnalysisJob, error)
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	Complete(ctx context.Context, id string, result json.RawMessage, at time.Time) (bool, error)
	Fail(ctx context.Context, id string, message string, at time.Time) (bool, error)
	FailQueued(ctx context.Context, id string, message string, at time.Time) (bool, error)
}

type ObjectStorage interface {
	Bucket() string
	PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, minSize, maxSize int64) (storage.UploadCredential, error)
	Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
}

type RateLimiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error)
}

type Broker interface {
	Enqueue(ctx context.Context, jobID string) error
}
