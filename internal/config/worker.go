package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type WorkerConfig struct {
	Environment string
	API         WorkerAPIConfig
	Redis       WorkerRedisConfig
	Storage     StorageConfig
	Queues      QueueConfig
	Analysis    AnalysisConfig
	Logging     LoggingConfig
	// MetricsAddr serves /metrics when set, e.g. ":9102".
	MetricsAddr string
}

type WorkerAPIConfig struct {
	BaseURL     string
	WorkerToken string
	Timeout     time.Duration
}

type WorkerRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

// QueueConfig tunes stream consumption. Pending messages idle longer than
// ClaimInterval are reclaimed; Concurrency consumers share the group.
type QueueConfig struct {
	ClaimInterval time.Duration
	Concurrency   int
}

type AnalysisConfig struct {
	TempDir     string
	FFprobePath string
	FFmpegPath  string
	Timeout     time.Duration
}

func LoadWorker() (*WorkerConfig, error) {
	_ = godotenv.Load(".env", ".env.local")

	v := viper.New()
	v.SetConfigName("worker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.SetEnvPrefix("VQCC_WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setWorkerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg WorkerConfig
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.API.WorkerToken == "" {
		return nil, fmt.Errorf("api.workertoken is required")
	}

	return &cfg, nil
}

func setWorkerDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("api.baseurl", "http://127.0.0.1:8080")
	v.SetDefault("api.workertoken", "")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "analysis:jobs")
	v.SetDefault("redis.group", "analysis-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.endpoint", "http://127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "vqcc-videos")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.usessl", false)

	v.SetDefault("queues.claiminterval", "30s")
	v.SetDefault("queues.concurrency", 1)

	v.SetDefault("analysis.tempdir", "")
	v.SetDefault("analysis.ffprobepath", "ffprobe")
	v.SetDefault("analysis.ffmpegpath", "ffmpeg")
	v.SetDefault("analysis.timeout", "10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("metricsaddr", "")
}
