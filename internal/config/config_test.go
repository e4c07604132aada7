package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 60*time.Second, cfg.Storage.PresignExpiry)
	assert.Equal(t, int64(2)<<30, cfg.Upload.MaxSizeBytes)
	assert.Equal(t, []string{"video/"}, cfg.Upload.AllowedPrefixes)
	assert.Equal(t, 3, cfg.Upload.MaxConcurrent)
	assert.Equal(t, 10, cfg.Upload.InitLimit)
	assert.Equal(t, time.Minute, cfg.Upload.InitWindow)
	assert.Equal(t, 30*time.Minute, cfg.Reaper.StaleAfter)
	assert.Equal(t, 200, cfg.Reaper.BatchSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VQCC_UPLOAD_MAXCONCURRENT", "5")
	t.Setenv("VQCC_REAPER_STALEAFTER", "45m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Upload.MaxConcurrent)
	assert.Equal(t, 45*time.Minute, cfg.Reaper.StaleAfter)
}

func TestLoadWorkerRequiresToken(t *testing.T) {
	_, err := LoadWorker()
	require.Error(t, err)

	t.Setenv("VQCC_WORKER_API_WORKERTOKEN", "secret")
	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.API.WorkerToken)
	assert.Equal(t, "analysis-workers", cfg.Redis.Group)
	assert.Equal(t, 30*time.Second, cfg.Queues.ClaimInterval)
}

func TestLoadSecurityFromEnv(t *testing.T) {
	t.Setenv("VQCC_SECURITY_JWTACCESSSECRET", "jwt-secret")
	t.Setenv("VQCC_SECURITY_WORKERTOKEN", "worker-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jwt-secret", cfg.Security.JWTAccessSecret)
	assert.Equal(t, "worker-secret", cfg.Security.WorkerToken)
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("VQCC_ENVIRONMENT", "production")

	_, err := Load()
	assert.Error(t, err)
}
