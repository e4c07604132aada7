package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/At4lian/VQCC/internal/client"
	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/log"
	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/queue"
	"github.com/At4lian/VQCC/internal/storage"
	"github.com/At4lian/VQCC/internal/worker"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := queue.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	api := client.New(cfg.API.BaseURL, cfg.API.WorkerToken, &http.Client{Timeout: cfg.API.Timeout})
	analyzer := worker.NewFFAnalyzer(cfg.Analysis.FFprobePath, cfg.Analysis.FFmpegPath, cfg.Analysis.Timeout)
	m := metrics.New("vqcc_worker")
	processor := worker.NewProcessor(api, objectStore, analyzer, cfg.Analysis.TempDir, m, logger)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		defer metricsServer.Close()
	}

	concurrency := cfg.Queues.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	hostname, _ := os.Hostname()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		name := cfg.Redis.Consumer
		if concurrency > 1 {
			name = fmt.Sprintf("%s-%d", name, i)
		}
		consumer := queue.NewConsumer(
			redisClient,
			cfg.Redis.Stream,
			cfg.Redis.Group,
			name,
			cfg.Queues.ClaimInterval,
			logger.With().Str("consumer", name).Str("host", hostname).Logger(),
			processor,
		)
		if err := consumer.EnsureGroup(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ensure consumer group failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("consumer", name).Msg("consumer stopped unexpectedly")
				stop()
			}
		}()
	}

	logger.Info().Int("consumers", concurrency).Str("stream", cfg.Redis.Stream).Msg("worker started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	wg.Wait()
	logger.Info().Msg("worker exited cleanly")
}
