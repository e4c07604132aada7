package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/At4lian/VQCC/internal/service"
)

// writeError maps service outcomes onto HTTP responses. Unknown errors are
// logged and reported as 500 without detail.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	var (
		limited    *service.RateLimitedError
		assetState *service.AssetStateError
		mismatch   *service.SizeMismatchError
		storage    *service.StorageNotAccessibleError
		claim      *service.NotClaimableError
		jobState   *service.JobStateError
		enqueue    *service.EnqueueError
	)

	switch {
	case errors.Is(err, service.ErrAssetNotFound), errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, service.ErrInvalidContentType),
		errors.Is(err, service.ErrInvalidSize),
		errors.Is(err, service.ErrSizeExceeded),
		errors.Is(err, service.ErrEmptyChecks),
		errors.Is(err, service.ErrUnknownCheck),
		errors.Is(err, service.ErrStorageNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTooManyConcurrentUploads):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.As(err, &limited):
		secs := limited.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "retryAfterSeconds": secs})
	case errors.As(err, &assetState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": assetState.Status})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "size_mismatch",
			"expected": strconv.FormatInt(mismatch.Expected, 10),
			"actual":   strconv.FormatInt(mismatch.Actual, 10),
		})
	case errors.As(err, &storage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage_object_not_accessible", "message": storage.Err.Error()})
	case errors.As(err, &claim):
		c.JSON(http.StatusConflict, gin.H{"error": "job_not_claimable", "status": claim.Status})
	case errors.As(err, &jobState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": jobState.Status})
	case errors.As(err, &enqueue):
		h.log.Error().Err(enqueue.Err).Str("job_id", enqueue.JobID).Msg("enqueue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed", "jobId": enqueue.JobID})
	default:
		_ = c.Error(err)
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
}
