package client

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeAPI struct {
	log         *recorder
	initErr     error
	completeErr error
	jobErr      error
	reports     chan string

	// When set, the call announces itself on the first channel and blocks
	// until the second is closed (or, for completion, the request is aborted).
	initEntered, initRelease         chan struct{}
	completeEntered, completeRelease chan struct{}
}

func newFakeAPI(log *recorder) *fakeAPI {
	return &fakeAPI{log: log, reports: make(chan string, 4)}
}

func (f *fakeAPI) InitiateUpload(_ context.Context, req UploadRequest) (Initiated, error) {
	f.log.add("init")
	if f.initEntered != nil {
		close(f.initEntered)
		<-f.initRelease
	}
	if f.initErr != nil {
		return Initiated{}, f.initErr
	}
	return Initiated{AssetID: "asset-1", Upload: Credential{URL: "http://storage.local"}}, nil
}

func (f *fakeAPI) CompleteUpload(ctx context.Context, _ string) (Asset, error) {
	f.log.add("complete")
	if f.completeEntered != nil {
		close(f.completeEntered)
		select {
		case <-f.completeRelease:
		case <-ctx.Done():
			return Asset{}, ctx.Err()
		}
	}
	if f.completeErr != nil {
		return Asset{}, f.completeErr
	}
	return Asset{ID: "asset-1", Status: "UPLOADED"}, nil
}

func (f *fakeAPI) CancelUpload(context.Context, string) error {
	f.log.add("cancel")
	return nil
}

func (f *fakeAPI) ReportFailure(_ context.Context, _ string, reason string) error {
	f.log.add("fail")
	f.reports <- reason
	return nil
}

func (f *fakeAPI) CreateAnalysisJob(_ context.Context, assetID string, checks []string) (Job, error) {
	f.log.add("job")
	if f.jobErr != nil {
		return Job{}, f.jobErr
	}
	return Job{ID: "job-1", AssetID: assetID, Status: "QUEUED", Requested: checks}, nil
}

// streamTransfer reads the body in small chunks and reports progress.
type streamTransfer struct {
	err error
}

func (t streamTransfer) Transfer(_ context.Context, _ Credential, file io.Reader, _ int64, _, _ string, progress ProgressFunc) error {
	buf := make([]byte, 10)
	var sent int64
	for {
		n, err := file.Read(buf)
		sent += int64(n)
		if n > 0 {
			progress(sent)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return t.err
}

// blockingTransfer waits for its context to end.
type blockingTransfer struct {
	log     *recorder
	started chan struct{}
}

func (t blockingTransfer) Transfer(ctx context.Context, _ Credential, _ io.Reader, _ int64, _, _ string, _ ProgressFunc) error {
	close(t.started)
	<-ctx.Done()
	t.log.add("aborted")
	return ctx.Err()
}

func testFile(size int) File {
	return File{Name: "clip.mp4", ContentType: "video/mp4", Size: int64(size), Body: strings.NewReader(strings.Repeat("x", size))}
}

func TestSessionHappyPath(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)

	var (
		mu       sync.Mutex
		states   []State
		progress []int
	)
	s := NewSession(api, streamTransfer{}, SessionOptions{
		Checks:           []string{"FPS"},
		ProgressInterval: time.Nanosecond,
		OnState: func(st State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		},
		OnProgress: func(p int) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	})

	require.NoError(t, s.Send(context.Background(), testFile(100)))

	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, []State{StatePreparing, StateUploading, StateCompleting, StateDone}, states)
	assert.Equal(t, []string{"init", "complete", "job"}, log.list())

	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}

	job, jobErr := s.Job()
	require.NoError(t, jobErr)
	assert.Equal(t, "job-1", job.ID)
}

func TestSessionProgressIsThrottled(t *testing.T) {
	var got []int
	s := NewSession(newFakeAPI(&recorder{}), streamTransfer{}, SessionOptions{
		ProgressInterval: time.Hour,
		OnProgress:       func(p int) { got = append(got, p) },
	})

	require.NoError(t, s.Send(context.Background(), testFile(1000)))
	// the first intermediate value consumes the burst, the rest are dropped
	require.GreaterOrEqual(t, len(got), 2)
	assert.LessOrEqual(t, len(got), 3)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 100, got[len(got)-1])
}

func TestSessionInitFailure(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)
	api.initErr = &APIError{StatusCode: 429, Code: "rate_limited"}

	s := NewSession(api, streamTransfer{}, SessionOptions{})
	err := s.Send(context.Background(), testFile(10))
	require.Error(t, err)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, []string{"init"}, log.list())
}

func TestSessionTransferFailureReports(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)

	s := NewSession(api, streamTransfer{err: errors.New("storage upload failed (403)")}, SessionOptions{})
	err := s.Send(context.Background(), testFile(10))
	require.Error(t, err)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, "storage upload failed (403)", <-api.reports)
}

func TestSessionCompleteFailureReportsServerMessage(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)
	api.completeErr = &APIError{StatusCode: 400, Code: "size_mismatch"}

	s := NewSession(api, streamTransfer{}, SessionOptions{})
	err := s.Send(context.Background(), testFile(10))
	require.Error(t, err)
	assert.Equal(t, StateError, s.State())
	assert.Contains(t, <-api.reports, "size_mismatch")
}

func TestSessionJobFailureKeepsDone(t *testing.T) {
	api := newFakeAPI(&recorder{})
	api.jobErr = errors.New("enqueue_failed")

	s := NewSession(api, streamTransfer{}, SessionOptions{Checks: []string{"BITRATE"}})
	require.NoError(t, s.Send(context.Background(), testFile(10)))

	assert.Equal(t, StateDone, s.State())
	job, err := s.Job()
	assert.Nil(t, job)
	assert.Error(t, err)
}

func TestSessionCancelReportsBeforeAbort(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)
	started := make(chan struct{})

	s := NewSession(api, blockingTransfer{log: log, started: started}, SessionOptions{})
	assert.ErrorIs(t, s.Cancel(context.Background()), ErrNotCancelable)

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), testFile(10)) }()

	<-started
	require.NoError(t, s.Cancel(context.Background()))

	assert.ErrorIs(t, <-done, ErrCanceled)
	assert.Equal(t, StateCanceled, s.State())
	assert.Equal(t, []string{"init", "cancel", "aborted"}, log.list())

	assert.ErrorIs(t, s.Cancel(context.Background()), ErrNotCancelable)
}

func TestSessionAbandonDuringUpload(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)
	started := make(chan struct{})

	s := NewSession(api, blockingTransfer{log: log, started: started}, SessionOptions{})

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), testFile(10)) }()

	<-started
	s.Abandon("Page closed during upload")

	assert.ErrorIs(t, <-done, ErrAbandoned)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, "Page closed during upload", <-api.reports)
	s.Wait()
}

func TestSessionAbandonWhilePreparingReportsOnceIDIsKnown(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)
	api.initEntered = make(chan struct{})
	api.initRelease = make(chan struct{})

	s := NewSession(api, streamTransfer{}, SessionOptions{})

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), testFile(10)) }()

	<-api.initEntered
	assert.Equal(t, StatePreparing, s.State())
	s.Abandon("Tab closed before upload started")
	select {
	case r := <-api.reports:
		t.Fatalf("report sent before the asset id was known: %q", r)
	default:
	}
	close(api.initRelease)

	assert.ErrorIs(t, <-done, ErrAbandoned)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, "asset-1", s.AssetID())
	assert.Equal(t, "Tab closed before upload started", <-api.reports)
	s.Wait()
	assert.Equal(t, []string{"init", "fail"}, log.list())
}

func TestSessionAbandonWhileCompletingAbortsVerification(t *testing.T) {
	log := &recorder{}
	api := newFakeAPI(log)
	api.completeEntered = make(chan struct{})
	api.completeRelease = make(chan struct{})
	defer close(api.completeRelease)

	s := NewSession(api, streamTransfer{}, SessionOptions{Checks: []string{"FPS"}})

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), testFile(10)) }()

	<-api.completeEntered
	assert.Equal(t, StateCompleting, s.State())
	s.Abandon("Navigated away while verifying")

	assert.ErrorIs(t, <-done, ErrAbandoned)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, "Navigated away while verifying", <-api.reports)
	s.Wait()

	job, _ := s.Job()
	assert.Nil(t, job)
	assert.NotContains(t, log.list(), "job")
}

func TestSessionAbandonWhenIdleDoesNothing(t *testing.T) {
	log := &recorder{}
	s := NewSession(newFakeAPI(log), streamTransfer{}, SessionOptions{})
	s.Abandon("bye")
	s.Wait()
	assert.Empty(t, log.list())
}
