package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/notify"
)

type SweepResult struct {
	Checked        int       `json:"checked"`
	Failed         int       `json:"failed"`
	DeleteAttempts int       `json:"deleteAttempts"`
	Cutoff         time.Time `json:"cutoff"`
}

// Reaper forces abandoned UPLOADING assets to FAILED.
type Reaper struct {
	assets  AssetStore
	store   ObjectStorage
	cfg     config.ReaperConfig
	metrics *metrics.Metrics
	notify  notify.Notifier
	log     zerolog.Logger
	now     func() time.Time
}

func NewReaper(assets AssetStore, store ObjectStorage, cfg config.ReaperConfig, m *metrics.Metrics, n notify.Notifier, log zerolog.Logger) *Reaper {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Reaper{
		assets:  assets,
		store:   store,
		cfg:     cfg,
		metrics: m,
		notify:  n,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

func (r *Reaper) reason() string {
	return fmt.Sprintf("Stuck UPLOADING > %d minutes (auto-cleanup)", int(r.cfg.StaleAfter.Minutes()))
}

// Sweep inspects one batch of stale uploads. Storage errors on individual
// assets are logged and never abort the run.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	now := r.now()
	cutoff := now.Add(-r.cfg.StaleAfter)

	stale, err := r.assets.ListStaleUploading(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list stale uploads: %w", err)
	}

	result := SweepResult{Checked: len(stale), Cutoff: cutoff}
	reason := r.reason()

	for _, asset := range stale {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if asset.Status != models.AssetStatusUploading {
			continue
		}

		won, err := r.assets.MarkFailed(ctx, asset.ID, reason, now)
		if err != nil {
			r.log.Error().Err(err).Str("asset_id", asset.ID).Msg("reaper: mark failed")
			continue
		}
		if !won {
			continue
		}
		result.Failed++
		r.metrics.AssetTransition(string(models.AssetStatusFailed))
		notify.Dispatch(ctx, r.notify, notify.Event{
			Kind:    notify.KindAssetFailed,
			OwnerID: asset.OwnerID,
			AssetID: asset.ID,
			Reason:  reason,
			At:      now,
		})

		if asset.HasLocation() {
			result.DeleteAttempts++
			if err := r.store.Delete(ctx, asset.Bucket, asset.ObjectKey); err != nil {
				r.log.Debug().Err(err).Str("asset_id", asset.ID).Msg("reaper: delete object ignored")
			}
		}
	}

	r.metrics.ReaperSwept(result.Failed, result.DeleteAttempts)
	if result.Checked > 0 {
		r.log.Info().
			Int("checked", result.Checked).
			Int("failed", result.Failed).
			Int("delete_attempts", result.DeleteAttempts).
			Time("cutoff", cutoff).
			Msg("stuck upload sweep")
	}
	return result, nil
}
