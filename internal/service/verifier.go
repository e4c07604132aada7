package service

import (
	"context"
	"fmt"

	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/notify"
)

// CompleteUpload confirms a client-reported transfer against object storage
// and promotes the asset to UPLOADED only when the stored object exists with
// exactly the declared size. Repeating the call on an UPLOADED asset returns
// it unchanged.
func (s *UploadService) CompleteUpload(ctx context.Context, ownerID, assetID string) (models.Asset, error) {
	asset, err := s.ownedAsset(ctx, ownerID, assetID)
	if err != nil {
		return models.Asset{}, err
	}

	switch asset.Status {
	case models.AssetStatusUploaded:
		return asset, nil
	case models.AssetStatusFailed, models.AssetStatusDeleted:
		return models.Asset{}, &AssetStateError{Status: asset.Status}
	}

	if !asset.HasLocation() {
		return models.Asset{}, ErrStorageNotConfigured
	}

	info, err := s.store.Stat(ctx, asset.Bucket, asset.ObjectKey)
	if err != nil {
		if _, markErr := s.forceFailed(ctx, asset, fmt.Sprintf("Storage object not accessible: %v", err), false); markErr != nil {
			return models.Asset{}, markErr
		}
		return models.Asset{}, &StorageNotAccessibleError{Err: err}
	}

	if info.Size <= 0 || info.Size != asset.DeclaredSizeBytes {
		if _, err := s.forceFailed(ctx, asset, fmt.Sprintf("Uploaded file size mismatch: expected %d, got %d", asset.DeclaredSizeBytes, info.Size), false); err != nil {
			return models.Asset{}, err
		}
		return models.Asset{}, &SizeMismatchError{Expected: asset.DeclaredSizeBytes, Actual: info.Size}
	}

	var etag *string
	if info.ETag != "" {
		etag = &info.ETag
	}

	now := s.now()
	won, err := s.assets.MarkUploaded(ctx, asset.ID, info.Size, etag, now)
	if err != nil {
		return models.Asset{}, fmt.Errorf("mark uploaded: %w", err)
	}
	if !won {
		return s.settledAfterRace(ctx, asset, func(current models.Asset) error {
			if current.Status == models.AssetStatusUploaded {
				return nil
			}
			return &AssetStateError{Status: current.Status}
		})
	}

	s.metrics.AssetTransition(string(models.AssetStatusUploaded))
	notify.Dispatch(ctx, s.notify, notify.Event{
		Kind:    notify.KindAssetUploaded,
		OwnerID: asset.OwnerID,
		AssetID: asset.ID,
		At:      now,
	})
	s.log.Info().Str("asset_id", asset.ID).Int64("size", info.Size).Msg("upload verified")

	return s.assets.GetByID(ctx, asset.ID)
}
