// Package worker consumes analysis jobs: it claims each job through the API,
// fetches the media, runs the requested checks and reports the outcome.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/client"
	"github.com/At4lian/VQCC/internal/media"
	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/models"
)

type JobAPI interface {
	ClaimJob(ctx context.Context, jobID string) (client.Claim, error)
	CompleteJob(ctx context.Context, jobID string, result json.RawMessage) error
	FailJob(ctx context.Context, jobID, message string) error
}

type Fetcher interface {
	Download(ctx context.Context, bucket, key, path string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, path string, checks []models.CheckKind) (map[string]any, error)
}

type Processor struct {
	api      JobAPI
	fetcher  Fetcher
	analyzer Analyzer
	tempDir  string
	metrics  *metrics.Metrics
	log      zerolog.Logger

	completeAttempts int
	completeBackoff  time.Duration
}

const maxFailureMessage = 2000

func NewProcessor(api JobAPI, fetcher Fetcher, analyzer Analyzer, tempDir string, m *metrics.Metrics, log zerolog.Logger) *Processor {
	return &Processor{
		api:      api,
		fetcher:  fetcher,
		analyzer: analyzer,
		tempDir:  tempDir,
		metrics:  m,
		log:      log,

		completeAttempts: 4,
		completeBackoff:  500 * time.Millisecond,
	}
}

// Handle processes one queue message. A job someone else already claimed
// is acknowledged without work. Any other failure is reported to the API on
// a best-effort basis and returned so the message stays pending.
func (p *Processor) Handle(ctx context.Context, jobID string) error {
	start := time.Now()
	logger := p.log.With().Str("job_id", jobID).Logger()

	claim, err := p.api.ClaimJob(ctx, jobID)
	if err != nil {
		if client.IsConflict(err) || client.IsNotFound(err) {
			logger.Info().Err(err).Msg("job not claimable, skipping")
			p.metrics.JobProcessed("skipped", time.Since(start))
			return nil
		}
		return fmt.Errorf("claim: %w", err)
	}

	result, err := p.run(ctx, claim)
	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		p.reportFailure(ctx, jobID, err)
		p.metrics.JobProcessed("failed", time.Since(start))
		return err
	}

	if err := p.complete(ctx, jobID, result); err != nil {
		if client.IsConflict(err) {
			logger.Warn().Err(err).Msg("job left RUNNING before completion, dropping result")
			p.metrics.JobProcessed("skipped", time.Since(start))
			return nil
		}
		// A re-delivered message can no longer claim this RUNNING job, so
		// the failure report is the only way it reaches a terminal state.
		logger.Error().Err(err).Msg("completion not delivered")
		p.reportFailure(ctx, jobID, fmt.Errorf("complete: %w", err))
		p.metrics.JobProcessed("failed", time.Since(start))
		return fmt.Errorf("complete: %w", err)
	}

	logger.Info().Dur("took", time.Since(start)).Msg("job completed")
	p.metrics.JobProcessed("completed", time.Since(start))
	return nil
}

func (p *Processor) run(ctx context.Context, claim client.Claim) (json.RawMessage, error) {
	checks, err := models.NormalizeChecks(claim.Job.Requested)
	if err != nil {
		return nil, err
	}
	if claim.Asset.Bucket == "" || claim.Asset.Key == "" {
		return nil, fmt.Errorf("claim for job %s carries no storage location", claim.Job.ID)
	}

	dir, err := os.MkdirTemp(p.tempDir, "vqcc-job-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "media"+path.Ext(claim.Asset.Key))
	if err := p.fetcher.Download(ctx, claim.Asset.Bucket, claim.Asset.Key, local); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	container := "unknown"
	if f, err := os.Open(local); err == nil {
		if c, err := media.Detect(f); err == nil {
			container = string(c)
		}
		f.Close()
	}

	results, err := p.analyzer.Analyze(ctx, local, checks)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	return json.Marshal(map[string]any{
		"jobId":     claim.Job.ID,
		"assetId":   claim.Asset.ID,
		"requested": checks,
		"container": container,
		"checks":    results,
	})
}

// complete retries transport and 5xx failures with exponential backoff.
// Completion is idempotent on the server, so a retry after a lost response
// is harmless.
func (p *Processor) complete(ctx context.Context, jobID string, result json.RawMessage) error {
	backoff := p.completeBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = p.api.CompleteJob(ctx, jobID, result)
		if err == nil || !retryable(err) || attempt >= p.completeAttempts {
			return err
		}
		p.log.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("complete failed, retrying")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		backoff *= 2
	}
}

func retryable(err error) bool {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func (p *Processor) reportFailure(ctx context.Context, jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	msg := cause.Error()
	if r := []rune(msg); len(r) > maxFailureMessage {
		msg = string(r[:maxFailureMessage])
	}
	if err := p.api.FailJob(ctx, jobID, msg); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Msg("fail report not delivered")
	}
}
