package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/middleware"
	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/service"
)

type Uploads interface {
	InitiateUpload(ctx context.Context, input service.InitiateUploadInput) (service.InitiateUploadResult, error)
	CompleteUpload(ctx context.Context, ownerID, assetID string) (models.Asset, error)
	CancelUpload(ctx context.Context, ownerID, assetID string) (models.Asset, error)
	ReportFailure(ctx context.Context, ownerID, assetID, reason string) (service.ReportFailureResult, error)
}

type Analyses interface {
	CreateJob(ctx context.Context, input service.CreateJobInput) (models.AnalysisJob, error)
	GetJob(ctx context.Context, ownerID, jobID string) (service.JobView, error)
}

type Jobs interface {
	Claim(ctx context.Context, jobID string) (service.ClaimedJob, error)
	Complete(ctx context.Context, jobID string, result json.RawMessage) (service.Outcome, error)
	Fail(ctx context.Context, jobID, message string) (service.Outcome, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Pinger is anything health checks can ping: the database pool, the
// broker, the object store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Deps struct {
	Uploads  Uploads
	Analyses Analyses
	Jobs     Jobs
	Reaper   Sweeper
	Database Pinger
	Broker   Pinger
	Storage  Pinger
	Bucket   string
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	uploads  Uploads
	analyses Analyses
	jobs     Jobs
	reaper   Sweeper
	db       Pinger
	broker   Pinger
	storage  Pinger
	bucket   string
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		uploads:  deps.Uploads,
		analyses: deps.Analyses,
		jobs:     deps.Jobs,
		reaper:   deps.Reaper,
		db:       deps.Database,
		broker:   deps.Broker,
		storage:  deps.Storage,
		bucket:   deps.Bucket,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.GET("/storage/health", h.StorageHealth)

	user := v1.Group("")
	user.Use(middleware.Auth(h.cfg.Security.JWTAccessSecret))
	{
		user.POST("/uploads", h.InitiateUpload)
		user.POST("/uploads/complete", h.CompleteUpload)
		user.POST("/uploads/cancel", h.CancelUpload)
		user.POST("/uploads/fail", h.ReportUploadFailure)
		user.POST("/analyses", h.CreateAnalysis)
		user.GET("/analyses/:id", h.GetAnalysis)
	}

	maintenance := v1.Group("/maintenance")
	maintenance.Use(middleware.RequireBearer(h.cfg.Security.CronSecret))
	maintenance.GET("/cleanup-uploads", h.CleanupUploads)

	internal := router.Group("/internal/jobs")
	internal.Use(middleware.RequireBearer(h.cfg.Security.WorkerToken))
	internal.POST("/:id/claim", h.ClaimJob)
	internal.POST("/:id/complete", h.CompleteJob)
	internal.POST("/:id/fail", h.FailJob)
}
