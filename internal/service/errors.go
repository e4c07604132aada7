package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/ratelimit"
	"github.com/At4lian/VQCC/internal/repository"
)

var (
	ErrAssetNotFound            = repository.ErrAssetNotFound
	ErrJobNotFound              = repository.ErrJobNotFound
	ErrInvalidContentType       = errors.New("content type is not an accepted media type")
	ErrInvalidSize              = errors.New("declared size must be positive")
	ErrSizeExceeded             = errors.New("declared size exceeds the upload limit")
	ErrTooManyConcurrentUploads = errors.New("too many uploads in progress")
	ErrEmptyChecks              = errors.New("at least one check is required")
	ErrUnknownCheck             = errors.New("unknown check kind")
	ErrStorageNotConfigured     = errors.New("asset has no storage location")
)

// RateLimitedError is returned when upload initiation exceeds the per-owner
// window quota.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds is the Retry-After header value.
func (e *RateLimitedError) RetryAfterSeconds() int {
	return ratelimit.Result{RetryAfter: e.RetryAfter}.RetryAfterSeconds()
}

// AssetStateError reports that the asset's current status does not allow the
// requested operation.
type AssetStateError struct {
	Status models.AssetStatus
}

func (e *AssetStateError) Error() string {
	return fmt.Sprintf("asset is %s", e.Status)
}

type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %d bytes, stored %d bytes", e.Expected, e.Actual)
}

type StorageNotAccessibleError struct {
	Err error
}

func (e *StorageNotAccessibleError) Error() string {
	return fmt.Sprintf("storage object not accessible: %v", e.Err)
}

func (e *StorageNotAccessibleError) Unwrap() error {
	return e.Err
}

// NotClaimableError is returned to the losers of a claim race. Status is the
// job's status as observed after the failed claim.
type NotClaimableError struct {
	Status models.JobStatus
}

func (e *NotClaimableError) Error() string {
	return fmt.Sprintf("job not claimable: status %s", e.Status)
}

type JobStateError struct {
	Status models.JobStatus
}

func (e *JobStateError) Error() string {
	return fmt.Sprintf("job is %s", e.Status)
}

type EnqueueError struct {
	JobID string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue job %s: %v", e.JobID, e.Err)
}

func (e *EnqueueError) Unwrap() error {
	return e.Err
}
