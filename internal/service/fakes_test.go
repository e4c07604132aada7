package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/At4lian/VQCC/internal/config"
	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/ratelimit"
	"github.com/At4lian/VQCC/internal/storage"
)

type memAssets struct {
	mu      sync.Mutex
	assets  map[string]models.Asset
	markErr error
}

func newMemAssets() *memAssets {
	return &memAssets{assets: make(map[string]models.Asset)}
}

func (m *memAssets) CreateWithinCap(_ context.Context, asset models.Asset, maxActive int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[asset.ID]; ok {
		return false, errors.New("duplicate asset")
	}
	if maxActive > 0 {
		active := 0
		for _, a := range m.assets {
			if a.OwnerID == asset.OwnerID && a.Status == models.AssetStatusUploading {
				active++
			}
		}
		if active >= maxActive {
			return false, nil
		}
	}
	m.assets[asset.ID] = asset
	return true, nil
}

func (m *memAssets) GetByID(_ context.Context, id string) (models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[id]
	if !ok {
		return models.Asset{}, ErrAssetNotFound
	}
	return asset, nil
}

func (m *memAssets) CountByStatus(_ context.Context, ownerID string, status models.AssetStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.assets {
		if a.OwnerID == ownerID && a.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memAssets) MarkUploaded(_ context.Context, id string, size int64, etag *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok || a.Status != models.AssetStatusUploading {
		return false, nil
	}
	a.Status = models.AssetStatusUploaded
	a.VerifiedSizeBytes = &size
	a.ETag = etag
	a.UploadedAt = &at
	a.LastError = nil
	a.UpdatedAt = at
	m.assets[id] = a
	return true, nil
}

func (m *memAssets) MarkFailed(_ context.Context, id string, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	a, ok := m.assets[id]
	if !ok || a.Status != models.AssetStatusUploading {
		return false, nil
	}
	a.Status = models.AssetStatusFailed
	a.LastError = &reason
	a.FailedAt = &at
	a.UpdatedAt = at
	m.assets[id] = a
	return true, nil
}

func (m *memAssets) ListStaleUploading(_ context.Context, cutoff time.Time, limit int) ([]models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Asset
	for _, a := range m.assets {
		if a.Status == models.AssetStatusUploading && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// put stores an asset directly, bypassing the service.
func (m *memAssets) put(asset models.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]models.AnalysisJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]models.AnalysisJob)}
}

func (m *memJobs) Create(_ context.Context, job models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.AnalysisJob{}, ErrJobNotFound
	}
	return job, nil
}

func (m *memJobs) transition(id string, from, to models.JobStatus, apply func(*models.AnalysisJob)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != from {
		return false
	}
	job.Status = to
	apply(&job)
	m.jobs[id] = job
	return true
}

func (m *memJobs) Claim(_ context.Context, id string, at time.Time) (bool, error) {
	return m.transition(id, models.JobStatusQueued, models.JobStatusRunning, func(j *models.AnalysisJob) {
		j.StartedAt = &at
	}), nil
}

func (m *memJobs) Complete(_ context.Context, id string, result json.RawMessage, at time.Time) (bool, error) {
	return m.transition(id, models.JobStatusRunning, models.JobStatusCompleted, func(j *models.AnalysisJob) {
		j.Result = result
		j.ErrorMessage = nil
		j.FinishedAt = &at
	}), nil
}

func (m *memJobs) Fail(_ context.Context, id string, message string, at time.Time) (bool, error) {
	return m.transition(id, models.JobStatusRunning, models.JobStatusFailed, func(j *models.AnalysisJob) {
		j.ErrorMessage = &message
		j.FinishedAt = &at
	}), nil
}

func (m *memJobs) FailQueued(_ context.Context, id string, message string, at time.Time) (bool, error) {
	return m.transition(id, models.JobStatusQueued, models.JobStatusFailed, func(j *models.AnalysisJob) {
		j.ErrorMessage = &message
		j.FinishedAt = &at
	}), nil
}

func (m *memJobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string]int64
	deleted   []string
	statErr  error
	deleteErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]int64)}
}

func (f *fakeStorage) Bucket() string { return "vqcc-test" }

func (f *fakeStorage) PresignUpload(_ context.Context, bucket, key string, expiry time.Duration, minSize, maxSize int64) (storage.UploadCredential, error) {
	return storage.UploadCredential{
		URL:       "http://storage.local/" + bucket,
		Fields:    map[string]string{"key": key},
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

func (f *fakeStorage) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return storage.ObjectInfo{}, f.statErr
	}
	size, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Size: size, ETag: "etag-" + key}, nil
}

func (f *fakeStorage) Delete(_ context.Context, _, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return f.deleteErr
}

func (f *fakeStorage) upload(key string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = size
}

func (f *fakeStorage) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type memWindows struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memWindows) Increment(_ context.Context, key string, windowStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	k := key + "|" + windowStart.String()
	m.counts[k]++
	return m.counts[k], nil
}

func (m *memWindows) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (b *fakeBroker) Enqueue(_ context.Context, jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.ids = append(b.ids, jobID)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *testClock
	assets   *memAssets
	jobs     *memJobs
	storage  *fakeStorage
	broker   *fakeBroker
	uploads  *UploadService
	analysis *AnalysisService
	protocol *JobProtocol
	reaper   *Reaper
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxSizeBytes:    2 << 30,
		AllowedPrefixes: []string{"video/"},
		MaxConcurrent:   3,
		InitLimit:       10,
		InitWindow:      time.Minute,
	}
}

func newFixture() *fixture {
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:   clock,
		assets:  newMemAssets(),
		jobs:    newMemJobs(),
		storage: newFakeStorage(),
		broker:  &fakeBroker{},
	}
	log := zerolog.Nop()
	limiter := ratelimit.New(&memWindows{}).WithClock(clock.Now)

	f.uploads = NewUploadService(f.assets, f.storage, limiter, testUploadConfig(), time.Minute, nil, nil, log).WithClock(clock.Now)
	f.analysis = NewAnalysisService(f.assets, f.jobs, f.broker, nil, log).WithClock(clock.Now)
	f.protocol = NewJobProtocol(f.jobs, f.assets, nil, log).WithClock(clock.Now)
	f.reaper = NewReaper(f.assets, f.storage, config.ReaperConfig{StaleAfter: 30 * time.Minute, BatchSize: 200}, nil, nil, log).WithClock(clock.Now)
	return f
}
