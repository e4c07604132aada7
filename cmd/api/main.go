package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/database"
	"github.com/At4lian/VQCC/internal/handlers"
	"github.com/At4lian/VQCC/internal/jobs"
	"github.com/At4lian/VQCC/internal/log"
	"github.com/At4lian/VQCC/internal/metrics"
	"github.com/At4lian/VQCC/internal/notify"
	"github.com/At4lian/VQCC/internal/queue"
	"github.com/At4lian/VQCC/internal/ratelimit"
	"github.com/At4lian/VQCC/internal/repository"
	"github.com/At4lian/VQCC/internal/server"
	"github.com/At4lian/VQCC/internal/service"
	"github.com/At4lian/VQCC/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
	}

	redisClient, err := queue.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	m := metrics.New("vqcc")
	notifier := notify.NewLogNotifier(logger)

	assets := repository.NewAssetRepository(dbPool)
	jobRepo := repository.NewJobRepository(dbPool)
	limiter := ratelimit.New(repository.NewRateLimitRepository(dbPool))
	publisher := queue.NewPublisher(redisClient, cfg.Redis.Stream)

	uploads := service.NewUploadService(assets, objectStore, limiter, cfg.Upload, cfg.Storage.PresignExpiry, m, notifier, logger)
	analyses := service.NewAnalysisService(assets, jobRepo, publisher, m, logger)
	protocol := service.NewJobProtocol(jobRepo, assets, m, logger)
	reaper := service.NewReaper(assets, objectStore, cfg.Reaper, m, notifier, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Uploads:  uploads,
		Analyses: analyses,
		Jobs:     protocol,
		Reaper:   reaper,
		Database: dbPool,
		Broker:   publisher,
		Storage:  handlers.PingFunc(objectStore.Health),
		Bucket:   objectStore.Bucket(),
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, m)

	scheduler := jobs.NewScheduler(reaper, limiter, cfg.Reaper, cfg.RateLimit, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop(shutdownCtx)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
