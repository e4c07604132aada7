package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/At4lian/VQCC/internal/models"
)

// uploadedAsset runs an asset through init and verification.
func uploadedAsset(t *testing.T, f *fixture, owner string, size int64) models.Asset {
	t.Helper()
	ctx := context.Background()
	res, err := f.uploads.InitiateUpload(ctx, initInput(owner, size))
	require.NoError(t, err)
	f.storage.upload(res.Asset.ObjectKey, size)
	asset, err := f.uploads.CompleteUpload(ctx, owner, res.Asset.ID)
	require.NoError(t, err)
	return asset
}

func TestCreateJobQueuesAndEnqueues(t *testing.T) {
	f := newFixture()
	asset := uploadedAsset(t, f, "user-1", 100)

	job, err := f.analysis.CreateJob(context.Background(), CreateJobInput{
		OwnerID: "user-1",
		AssetID: asset.ID,
		Checks:  []string{"resolution", "FPS", "RESOLUTION", "loudness"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, []models.CheckKind{models.CheckResolution, models.CheckFPS, models.CheckAvgLoudness}, job.Requested)
	assert.Equal(t, []string{job.ID}, f.broker.ids)
}

func TestCreateJobValidation(t *testing.T) {
	f := newFixture()
	asset := uploadedAsset(t, f, "user-1", 100)
	ctx := context.Background()

	_, err := f.analysis.CreateJob(ctx, CreateJobInput{OwnerID: "user-1", AssetID: asset.ID})
	assert.ErrorIs(t, err, ErrEmptyChecks)

	_, err = f.analysis.CreateJob(ctx, CreateJobInput{OwnerID: "user-1", AssetID: asset.ID, Checks: []string{"COLOR"}})
	assert.ErrorIs(t, err, ErrUnknownCheck)

	_, err = f.analysis.CreateJob(ctx, CreateJobInput{OwnerID: "user-2", AssetID: asset.ID, Checks: []string{"FPS"}})
	assert.ErrorIs(t, err, ErrAssetNotFound)

	assert.Zero(t, f.jobs.count())
}

func TestCreateJobRejectsAssetStillUploading(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.uploads.InitiateUpload(ctx, initInput("user-1", 100))
	require.NoError(t, err)

	_, err = f.analysis.CreateJob(ctx, CreateJobInput{OwnerID: "user-1", AssetID: res.Asset.ID, Checks: []string{"FPS"}})
	var stateErr *AssetStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, models.AssetStatusUploading, stateErr.Status)
	assert.Zero(t, f.jobs.count())
	assert.Empty(t, f.broker.ids)
}

func TestCreateJobEnqueueFailureLeavesFailedJob(t *testing.T) {
	f := newFixture()
	asset := uploadedAsset(t, f, "user-1", 100)
	f.broker.fail = errors.New("broker down")

	_, err := f.analysis.CreateJob(context.Background(), CreateJobInput{OwnerID: "user-1", AssetID: asset.ID, Checks: []string{"BITRATE"}})
	var enqErr *EnqueueError
	require.True(t, errors.As(err, &enqErr))

	job, err := f.jobs.GetByID(context.Background(), enqErr.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "broker down")
	assert.NotNil(t, job.FinishedAt)
}

func TestGetJobIncludesAssetSummary(t *testing.T) {
	f := newFixture()
	asset := uploadedAsset(t, f, "user-1", 100)
	ctx := context.Background()

	job, err := f.analysis.CreateJob(ctx, CreateJobInput{OwnerID: "user-1", AssetID: asset.ID, Checks: []string{"FPS"}})
	require.NoError(t, err)

	view, err := f.analysis.GetJob(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, view.Job.ID)
	assert.Equal(t, asset.OriginalName, view.Asset.OriginalName)
	assert.Equal(t, models.AssetStatusUploaded, view.Asset.Status)

	_, err = f.analysis.GetJob(ctx, "user-2", job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
