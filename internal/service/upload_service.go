package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/ids"
	"github.com/At4lian/VQCC/internal/media"
	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/notify"
	"github.com/At4lian/VQCC/internal/storage"
)

const (
	ReasonCanceledByUser = "Canceled by user"
	ReasonClientFailure  = "Upload failed on client"
	maxReasonLength      = 500
)

type InitiateUploadInput struct {
	OwnerID      string
	Filename     string
	ContentType  string
	DeclaredSize int64
}

type InitiateUploadResult struct {
	Asset      models.Asset
	Credential storage.UploadCredential
}

// ReportFailureResult tells the caller whether the report changed anything.
type ReportFailureResult struct {
	Asset   models.Asset
	Ignored bool
}

// UploadService owns the asset lifecycle from admission to verification.
type UploadService struct {
	assets  AssetStore
	store   ObjectStorage
	limiter RateLimiter
	cfg     config.UploadConfig
	expiry  time.Duration
	metrics *metrics.Metrics
	notify  notify.Notifier
	log     zerolog.Logger
	now     func() time.Time
}

func NewUploadService(
	assets AssetStore,
	store ObjectStorage,
	limiter RateLimiter,
	cfg config.UploadConfig,
	presignExpiry time.Duration,
	m *metrics.Metrics,
	n notify.Notifier,
	log zerolog.Logger,
) *UploadService {
	if presignExpiry <= 0 {
		presignExpiry = 60 * time.Second
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &UploadService{
		assets:  assets,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		expiry:  presignExpiry,
		metrics: m,
		notify:  n,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for timestamps.
func (s *UploadService) WithClock(now func() time.Time) *UploadService {
	s.now = now
	return s
}

func (s *UploadService) InitiateUpload(ctx context.Context, input InitiateUploadInput) (InitiateUploadResult, error) {
	contentType := media.NormalizeContentType(input.ContentType)
	if !media.AllowedContentType(contentType, s.cfg.AllowedPrefixes) {
		s.metrics.AdmissionDenied("content_type")
		return InitiateUploadResult{}, ErrInvalidContentType
	}
	if input.DeclaredSize <= 0 {
		s.metrics.AdmissionDenied("size")
		return InitiateUploadResult{}, ErrInvalidSize
	}
	if input.DeclaredSize > s.cfg.MaxSizeBytes {
		s.metrics.AdmissionDenied("size")
		return InitiateUploadResult{}, ErrSizeExceeded
	}

	res, err := s.limiter.Check(ctx, initRateKey(input.OwnerID), s.cfg.InitLimit, s.cfg.InitWindow)
	if err != nil {
		return InitiateUploadResult{}, fmt.Errorf("rate limit: %w", err)
	}
	if !res.Allowed {
		s.metrics.AdmissionDenied("rate_limited")
		return InitiateUploadResult{}, &RateLimitedError{RetryAfter: res.RetryAfter}
	}

	now := s.now()
	assetID := ids.New()
	asset := models.Asset{
		ID:                assetID,
		OwnerID:           input.OwnerID,
		OriginalName:      input.Filename,
		ContentType:       contentType,
		DeclaredSizeBytes: input.DeclaredSize,
		Bucket:            s.store.Bucket(),
		ObjectKey:         media.ObjectKey(input.OwnerID, assetID, input.Filename),
		Status:            models.AssetStatusUploading,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := s.assets.CreateWithinCap(ctx, asset, s.cfg.MaxConcurrent)
	if err != nil {
		return InitiateUploadResult{}, fmt.Errorf("save asset: %w", err)
	}
	if !created {
		s.metrics.AdmissionDenied("concurrency")
		return InitiateUploadResult{}, ErrTooManyConcurrentUploads
	}
	s.metrics.AssetTransition(string(models.AssetStatusUploading))

	cred, err := s.store.PresignUpload(ctx, asset.Bucket, asset.ObjectKey, s.expiry, 1, s.cfg.MaxSizeBytes)
	if err != nil {
		if _, markErr := s.forceFailed(ctx, asset, "Presign failed: "+err.Error(), false); markErr != nil {
			s.log.Error().Err(markErr).Str("asset_id", asset.ID).Msg("presign failure not recorded")
		}
		return InitiateUploadResult{}, fmt.Errorf("presign upload: %w", err)
	}

	s.log.Info().
		Str("asset_id", asset.ID).
		Str("owner_id", asset.OwnerID).
		Int64("declared_size", asset.DeclaredSizeBytes).
		Msg("upload initiated")

	return InitiateUploadResult{Asset: asset, Credential: cred}, nil
}

// CancelUpload is allowed while the asset is UPLOADING. Canceling an
// already FAILED asset succeeds without changes.
func (s *UploadService) CancelUpload(ctx context.Context, ownerID, assetID string) (models.Asset, error) {
	asset, err := s.ownedAsset(ctx, ownerID, assetID)
	if err != nil {
		return models.Asset{}, err
	}

	switch asset.Status {
	case models.AssetStatusFailed:
		return asset, nil
	case models.AssetStatusUploaded, models.AssetStatusDeleted:
		return models.Asset{}, &AssetStateError{Status: asset.Status}
	}

	won, err := s.forceFailed(ctx, asset, ReasonCanceledByUser, true)
	if err != nil {
		return models.Asset{}, err
	}
	if !won {
		return s.settledAfterRace(ctx, asset, func(current models.Asset) error {
			if current.Status == models.AssetStatusFailed {
				return nil
			}
			return &AssetStateError{Status: current.Status}
		})
	}
	return s.assets.GetByID(ctx, asset.ID)
}

// ReportFailure records a client-side failure. It is a no-op once the asset
// has left UPLOADING.
func (s *UploadService) ReportFailure(ctx context.Context, ownerID, assetID, reason string) (ReportFailureResult, error) {
	asset, err := s.ownedAsset(ctx, ownerID, assetID)
	if err != nil {
		return ReportFailureResult{}, err
	}
	if asset.Status != models.AssetStatusUploading {
		return ReportFailureResult{Asset: asset, Ignored: true}, nil
	}

	won, err := s.forceFailed(ctx, asset, clampReason(reason), true)
	if err != nil {
		return ReportFailureResult{}, err
	}
	if !won {
		current, err := s.assets.GetByID(ctx, asset.ID)
		if err != nil {
			return ReportFailureResult{}, err
		}
		return ReportFailureResult{Asset: current, Ignored: true}, nil
	}

	current, err := s.assets.GetByID(ctx, asset.ID)
	if err != nil {
		return ReportFailureResult{}, err
	}
	return ReportFailureResult{Asset: current}, nil
}

func (s *UploadService) ownedAsset(ctx context.Context, ownerID, assetID string) (models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return models.Asset{}, err
	}
	if asset.OwnerID != ownerID {
		return models.Asset{}, ErrAssetNotFound
	}
	return asset, nil
}

// forceFailed moves an UPLOADING asset to FAILED and, when it won the
// transition and deleteObject is set, removes the stored object. Storage
// errors are logged and dropped; a store error is returned so callers never
// mistake it for a lost race.
func (s *UploadService) forceFailed(ctx context.Context, asset models.Asset, reason string, deleteObject bool) (bool, error) {
	won, err := s.assets.MarkFailed(ctx, asset.ID, reason, s.now())
	if err != nil {
		s.log.Error().Err(err).Str("asset_id", asset.ID).Msg("mark asset failed")
		return false, fmt.Errorf("mark failed: %w", err)
	}
	if !won {
		return false, nil
	}

	s.log.Warn().Str("asset_id", asset.ID).Str("reason", reason).Msg("asset failed")
	s.metrics.AssetTransition(string(models.AssetStatusFailed))
	notify.Dispatch(ctx, s.notify, notify.Event{
		Kind:    notify.KindAssetFailed,
		OwnerID: asset.OwnerID,
		AssetID: asset.ID,
		Reason:  reason,
		At:      s.now(),
	})

	if deleteObject && asset.HasLocation() {
		if err := s.store.Delete(ctx, asset.Bucket, asset.ObjectKey); err != nil {
			s.log.Debug().Err(err).Str("asset_id", asset.ID).Msg("delete object ignored")
		}
	}
	return true, nil
}

// settledAfterRace reloads an asset whose conditional update lost and lets
// decide judge the status someone else wrote.
func (s *UploadService) settledAfterRace(ctx context.Context, asset models.Asset, decide func(models.Asset) error) (models.Asset, error) {
	current, err := s.assets.GetByID(ctx, asset.ID)
	if err != nil {
		return models.Asset{}, err
	}
	if err := decide(current); err != nil {
		return models.Asset{}, err
	}
	return current, nil
}

func initRateKey(ownerID string) string {
	return "upload:init:user:" + ownerID
}

func clampReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ReasonClientFailure
	}
	if r := []rune(reason); len(r) > maxReasonLength {
		return string(r[:maxReasonLength])
	}
	return reason
}
