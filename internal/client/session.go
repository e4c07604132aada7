package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateUploading  State = "uploading"
	StateCompleting State = "completing"
	StateDone       State = "done"
	StateError      State = "error"
	StateCanceled   State = "canceled"
)

var (
	ErrSessionBusy   = errors.New("session already started")
	ErrNotCancelable = errors.New("upload can only be canceled while uploading")
	ErrCanceled      = errors.New("upload canceled")
	ErrAbandoned     = errors.New("upload abandoned")
)

// UploadAPI is the part of the API a session drives.
type UploadAPI interface {
	InitiateUpload(ctx context.Context, req UploadRequest) (Initiated, error)
	CompleteUpload(ctx context.Context, assetID string) (Asset, error)
	CancelUpload(ctx context.Context, assetID string) error
	ReportFailure(ctx context.Context, assetID, reason string) error
	CreateAnalysisJob(ctx context.Context, assetID string, checks []string) (Job, error)
}

type SessionOptions struct {
	// Checks, when set, are requested as an analysis job once the upload is
	// verified.
	Checks []string
	// OnProgress receives whole percentages, never decreasing. 0 and 100 are
	// always delivered; values in between at most once per ProgressInterval.
	OnProgress       func(pct int)
	OnState          func(State)
	ProgressInterval time.Duration
	// ReportTimeout bounds the best-effort failure and abandonment reports.
	ReportTimeout time.Duration
}

// File is what a session uploads.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Session drives one upload through init, direct transfer and completion.
// It is single-use.
type Session struct {
	api      UploadAPI
	transfer Transferrer
	opts     SessionOptions
	throttle *rate.Limiter

	mu        sync.Mutex
	state     State
	assetID   string
	abort     context.CancelFunc
	canceling bool
	abandoned string
	lastPct   int
	asset     Asset
	job       *Job
	jobErr    error
	err       error
	reports   sync.WaitGroup
}

func NewSession(api UploadAPI, transfer Transferrer, opts SessionOptions) *Session {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 100 * time.Millisecond
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 5 * time.Second
	}
	return &Session{
		api:      api,
		transfer: transfer,
		opts:     opts,
		throttle: rate.NewLimiter(rate.Every(opts.ProgressInterval), 1),
		state:    StateIdle,
		lastPct:  -1,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) AssetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assetID
}

func (s *Session) Asset() Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

// Job returns the analysis job created after the upload, and the error if
// creating it failed. Neither affects the upload outcome.
func (s *Session) Job() (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job, s.jobErr
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send runs the whole protocol and blocks until the session reaches done,
// error or canceled.
func (s *Session) Send(ctx context.Context, file File) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.mu.Unlock()
	s.setState(StatePreparing)

	init, err := s.api.InitiateUpload(ctx, UploadRequest{
		Filename:    file.Name,
		ContentType: file.ContentType,
		Size:        file.Size,
	})
	if err != nil {
		return s.fail(fmt.Errorf("init upload: %w", err))
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	s.mu.Lock()
	s.assetID = init.AssetID
	s.abort = abort
	abandoned := s.abandoned
	s.mu.Unlock()
	if abandoned != "" {
		s.reportDetached(init.AssetID, abandoned)
		return s.fail(ErrAbandoned)
	}

	s.setState(StateUploading)
	s.emitProgress(0, file.Size)

	err = s.transfer.Transfer(runCtx, init.Upload, file.Body, file.Size, file.Name, file.ContentType, func(sent int64) {
		s.emitProgress(sent, file.Size)
	})

	s.mu.Lock()
	canceling, abandoned := s.canceling, s.abandoned
	s.mu.Unlock()
	switch {
	case canceling:
		s.setState(StateCanceled)
		return ErrCanceled
	case abandoned != "":
		return s.fail(ErrAbandoned)
	case err != nil:
		s.report(init.AssetID, err.Error())
		return s.fail(err)
	}
	s.emitProgress(file.Size, file.Size)

	s.setState(StateCompleting)
	asset, err := s.api.CompleteUpload(runCtx, init.AssetID)
	if err != nil {
		if s.isAbandoned() {
			return s.fail(ErrAbandoned)
		}
		s.report(init.AssetID, err.Error())
		return s.fail(fmt.Errorf("complete upload: %w", err))
	}

	s.mu.Lock()
	s.asset = asset
	s.mu.Unlock()
	s.setState(StateDone)

	if len(s.opts.Checks) > 0 {
		job, err := s.api.CreateAnalysisJob(ctx, init.AssetID, s.opts.Checks)
		s.mu.Lock()
		if err != nil {
			s.jobErr = err
		} else {
			s.job = &job
		}
		s.mu.Unlock()
	}
	return nil
}

// Cancel stops an in-flight transfer. The server is told first so its view
// converges even if this process exits right after.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUploading || s.canceling {
		s.mu.Unlock()
		return ErrNotCancelable
	}
	s.canceling = true
	assetID, abort := s.assetID, s.abort
	s.mu.Unlock()

	reportErr := s.api.CancelUpload(ctx, assetID)

	abort()
	s.setState(StateCanceled)
	if reportErr != nil {
		return fmt.Errorf("cancel report: %w", reportErr)
	}
	return nil
}

// Abandon tears the session down. While preparing, uploading or completing
// it fires a failure report tagged with reason, aborts the in-flight transfer
// or completion request and returns without waiting for delivery.
func (s *Session) Abandon(reason string) {
	if reason == "" {
		reason = "Upload abandoned by client"
	}

	s.mu.Lock()
	switch s.state {
	case StatePreparing, StateUploading, StateCompleting:
	default:
		s.mu.Unlock()
		return
	}
	if s.abandoned != "" || s.canceling {
		s.mu.Unlock()
		return
	}
	s.abandoned = reason
	assetID, abort := s.assetID, s.abort
	s.mu.Unlock()

	if assetID != "" {
		s.reportDetached(assetID, reason)
	}
	if abort != nil {
		abort()
	}
}

// Wait blocks until detached reports have finished or given up.
func (s *Session) Wait() {
	s.reports.Wait()
}

func (s *Session) isAbandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned != ""
}

func (s *Session) report(assetID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReportTimeout)
	defer cancel()
	_ = s.api.ReportFailure(ctx, assetID, reason)
}

func (s *Session) reportDetached(assetID, reason string) {
	s.reports.Add(1)
	go func() {
		defer s.reports.Done()
		s.report(assetID, reason)
	}()
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.setState(StateError)
	return err
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	if s.state == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	if s.opts.OnState != nil {
		s.opts.OnState(to)
	}
}

func (s *Session) emitProgress(sent, size int64) {
	pct := 100
	if size > 0 {
		pct = int(sent * 100 / size)
	}
	if pct > 100 {
		pct = 100
	}

	s.mu.Lock()
	if pct <= s.lastPct {
		s.mu.Unlock()
		return
	}
	if pct != 0 && pct != 100 && !s.throttle.Allow() {
		s.mu.Unlock()
		return
	}
	s.lastPct = pct
	s.mu.Unlock()

	if s.opts.OnProgress != nil {
		s.opts.OnProgress(pct)
	}
}
