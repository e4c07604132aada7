package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/models"
)

// ClaimedJob is what a worker needs after winning a claim: the job and the
// coordinates of the media it must inspect.
type ClaimedJob struct {
	Job   models.AnalysisJob
	Asset models.Asset
}

// Outcome describes the effect of a worker report. Already is set when a
// completion arrives for a job that is already COMPLETED; Ignored when a
// failure arrives for a job that is already terminal.
type Outcome struct {
	Job     models.AnalysisJob
	Already bool
	Ignored bool
}

// JobProtocol is the worker-facing side of the job state machine.
type JobProtocol struct {
	jobs    JobStore
	assets  AssetStore
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewJobProtocol(jobs JobStore, assets AssetStore, m *metrics.Metrics, log zerolog.Logger) *JobProtocol {
	return &JobProtocol{
		jobs:    jobs,
		assets:  assets,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *JobProtocol) WithClock(now func() time.Time) *JobProtocol {
	p.now = now
	return p
}

// Claim moves a QUEUED job to RUNNING. Of any number of concurrent callers
// exactly one succeeds; the rest get *NotClaimableError with the status they
// lost to.
func (p *JobProtocol) Claim(ctx context.Context, jobID string) (ClaimedJob, error) {
	won, err := p.jobs.Claim(ctx, jobID, p.now())
	if err != nil {
		return ClaimedJob{}, fmt.Errorf("claim job: %w", err)
	}

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return ClaimedJob{}, err
	}
	if !won {
		p.metrics.ClaimConflict()
		return ClaimedJob{}, &NotClaimableError{Status: job.Status}
	}
	p.metrics.JobTransition(string(models.JobStatusRunning))

	asset, err := p.assets.GetByID(ctx, job.AssetID)
	if err != nil {
		return ClaimedJob{}, fmt.Errorf("load asset %s: %w", job.AssetID, err)
	}

	p.log.Info().Str("job_id", job.ID).Str("asset_id", asset.ID).Msg("job claimed")
	return ClaimedJob{Job: job, Asset: asset}, nil
}

// Complete stores the result of a RUNNING job. Completing an already
// COMPLETED job succeeds without rewriting the stored result.
func (p *JobProtocol) Complete(ctx context.Context, jobID string, result json.RawMessage) (Outcome, error) {
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	if !json.Valid(result) {
		return Outcome{}, errors.New("result is not valid JSON")
	}

	won, err := p.jobs.Complete(ctx, jobID, result, p.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("complete job: %w", err)
	}

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return Outcome{}, err
	}
	if won {
		p.metrics.JobTransition(string(models.JobStatusCompleted))
		p.log.Info().Str("job_id", job.ID).Msg("job completed")
		return Outcome{Job: job}, nil
	}

	if job.Status == models.JobStatusCompleted {
		return Outcome{Job: job, Already: true}, nil
	}
	return Outcome{}, &JobStateError{Status: job.Status}
}

// Fail records a worker failure on a RUNNING job. Reports against a job
// that is already terminal are ignored so a late failure never overwrites a
// completion.
func (p *JobProtocol) Fail(ctx context.Context, jobID, message string) (Outcome, error) {
	if message == "" {
		message = "Worker failed"
	}
	if r := []rune(message); len(r) > maxReasonLength*4 {
		message = string(r[:maxReasonLength*4])
	}

	won, err := p.jobs.Fail(ctx, jobID, message, p.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("fail job: %w", err)
	}

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return Outcome{}, err
	}
	if won {
		p.metrics.JobTransition(string(models.JobStatusFailed))
		p.log.Warn().Str("job_id", job.ID).Str("error", message).Msg("job failed")
		return Outcome{Job: job}, nil
	}

	if job.Status.Terminal() {
		return Outcome{Job: job, Ignored: true}, nil
	}
	return Outcome{}, &JobStateError{Status: job.Status}
}
