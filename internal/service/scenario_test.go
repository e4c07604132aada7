package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/At4lian/VQCC/internal/models"
)

func TestUploadThenAnalyzeEndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	const size = 500 << 20

	initRes, err := f.uploads.InitiateUpload(ctx, InitiateUploadInput{
		OwnerID:      "user-1",
		Filename:     "holiday.mp4",
		ContentType:  "video/mp4",
		DeclaredSize: size,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusUploading, initRes.Asset.Status)
	assert.NotEmpty(t, initRes.Credential.URL)

	f.storage.upload(initRes.Asset.ObjectKey, size)

	asset, err := f.uploads.CompleteUpload(ctx, "user-1", initRes.Asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusUploaded, asset.Status)

	job, err := f.analysis.CreateJob(ctx, CreateJobInput{
		OwnerID: "user-1",
		AssetID: asset.ID,
		Checks:  []string{"RESOLUTION", "FPS"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Contains(t, f.broker.ids, job.ID)

	claimed, err := f.protocol.Claim(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, claimed.Job.Status)
	assert.Equal(t, asset.ObjectKey, claimed.Asset.ObjectKey)

	result := json.RawMessage(`{"resolution":{"width":1920,"height":1080},"fps":29.97}`)
	done, err := f.protocol.Complete(ctx, job.ID, result)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Job.Status)
	assert.NotNil(t, done.Job.FinishedAt)

	repeat, err := f.protocol.Complete(ctx, job.ID, result)
	require.NoError(t, err)
	assert.True(t, repeat.Already)
	assert.Equal(t, done.Job.FinishedAt, repeat.Job.FinishedAt)
}
