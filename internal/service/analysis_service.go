package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/ids"
	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/models"
)

type CreateJobInput struct {
	OwnerID string
	AssetID string
	Checks  []string
}

// AssetSummary is the slice of an asset shown alongside a job.
type AssetSummary struct {
	ID           string
	OriginalName string
	Status       models.AssetStatus
	UploadedAt   *time.Time
}

type JobView struct {
	Job   models.AnalysisJob
	Asset AssetSummary
}

// AnalysisService creates analysis jobs and hands them to the broker.
type AnalysisService struct {
	assets  AssetStore
	jobs    JobStore
	broker  Broker
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewAnalysisService(assets AssetStore, jobs JobStore, broker Broker, m *metrics.Metrics, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		assets:  assets,
		jobs:    jobs,
		broker:  broker,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *AnalysisService) WithClock(now func() time.Time) *AnalysisService {
	s.now = now
	return s
}

// CreateJob queues a job against an UPLOADED asset. If the broker refuses
// the job, the job row is kept as FAILED and an *EnqueueError is returned.
func (s *AnalysisService) CreateJob(ctx context.Context, input CreateJobInput) (models.AnalysisJob, error) {
	if len(input.Checks) == 0 {
		return models.AnalysisJob{}, ErrEmptyChecks
	}
	checks, err := models.NormalizeChecks(input.Checks)
	if err != nil {
		return models.AnalysisJob{}, fmt.Errorf("%w: %v", ErrUnknownCheck, err)
	}

	asset, err := s.assets.GetByID(ctx, input.AssetID)
	if err != nil {
		return models.AnalysisJob{}, err
	}
	if asset.OwnerID != input.OwnerID {
		return models.AnalysisJob{}, ErrAssetNotFound
	}
	if asset.Status != models.AssetStatusUploaded {
		return models.AnalysisJob{}, &AssetStateError{Status: asset.Status}
	}

	job := models.AnalysisJob{
		ID:        ids.New(),
		OwnerID:   input.OwnerID,
		AssetID:   asset.ID,
		Status:    models.JobStatusQueued,
		Requested: checks,
		CreatedAt: s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return models.AnalysisJob{}, fmt.Errorf("save job: %w", err)
	}
	s.metrics.JobTransition(string(models.JobStatusQueued))

	if err := s.broker.Enqueue(ctx, job.ID); err != nil {
		msg := "Enqueue to broker failed: " + err.Error()
		failedAt := s.now()
		if _, ferr := s.jobs.FailQueued(ctx, job.ID, msg, failedAt); ferr != nil {
			s.log.Error().Err(ferr).Str("job_id", job.ID).Msg("mark unenqueued job failed")
		} else {
			s.metrics.JobTransition(string(models.JobStatusFailed))
		}
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("enqueue failed")
		return models.AnalysisJob{}, &EnqueueError{JobID: job.ID, Err: err}
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("asset_id", asset.ID).
		Int("checks", len(checks)).
		Msg("analysis job queued")
	return job, nil
}

func (s *AnalysisService) GetJob(ctx context.Context, ownerID, jobID string) (JobView, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	if job.OwnerID != ownerID {
		return JobView{}, ErrJobNotFound
	}

	view := JobView{Job: job, Asset: AssetSummary{ID: job.AssetID}}
	asset, err := s.assets.GetByID(ctx, job.AssetID)
	switch {
	case err == nil:
		view.Asset = AssetSummary{
			ID:           asset.ID,
			OriginalName: asset.OriginalName,
			Status:       asset.Status,
			UploadedAt:   asset.UploadedAt,
		}
	case !errors.Is(err, ErrAssetNotFound):
		return JobView{}, err
	}
	return view, nil
}
