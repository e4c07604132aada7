package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/service"
)

type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler runs the in-process maintenance: the stuck-upload sweep and
// garbage collection of expired rate-limit windows.
type Scheduler struct {
	cron    *cron.Cron
	reaper  Sweeper
	pruner  Pruner
	reapCfg config.ReaperConfig
	rateCfg config.RateLimitConfig
	log     zerolog.Logger
	timeout time.Duration
}

func NewScheduler(reaper Sweeper, pruner Pruner, reapCfg config.ReaperConfig, rateCfg config.RateLimitConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reaper:  reaper,
		pruner:  pruner,
		reapCfg: reapCfg,
		rateCfg: rateCfg,
		log:     log,
		timeout: 2 * time.Minute,
	}
}

func (s *Scheduler) Start() error {
	if s.reaper != nil && s.reapCfg.Schedule != "" {
		if _, err := s.cron.AddFunc(s.reapCfg.Schedule, s.sweepStuckUploads); err != nil {
			return fmt.Errorf("schedule reaper %q: %w", s.reapCfg.Schedule, err)
		}
	}
	if s.pruner != nil && s.rateCfg.PruneSchedule != "" {
		if _, err := s.cron.AddFunc(s.rateCfg.PruneSchedule, s.pruneRateLimits); err != nil {
			return fmt.Errorf("schedule rate limit prune %q: %w", s.rateCfg.PruneSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweepStuckUploads() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.reaper.Sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled sweep failed")
	}
}

func (s *Scheduler) pruneRateLimits() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed, err := s.pruner.Prune(ctx, s.rateCfg.Retention)
	if err != nil {
		s.log.Error().Err(err).Msg("rate limit prune failed")
		return
	}
	if removed > 0 {
		s.log.Debug().Int64("removed", removed).Msg("rate limit windows pruned")
	}
}
