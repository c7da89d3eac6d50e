// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session drives one processing session from file selection to
// completed minutes.
//
// The Orchestrator owns the Session record. Transitions happen under its
// mutex; backend calls run outside it. Each reset advances an epoch, and
// every backend response checks the epoch it was issued under before it
// may touch the Session, so late responses from an abandoned session are
// dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/rapid-minutes/internal/backend"
	"github.com/pdiddy/rapid-minutes/internal/download"
	"github.com/pdiddy/rapid-minutes/internal/errclass"
	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/internal/poller"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

var (
	// ErrBusy rejects a request while an upload or processing run is active.
	ErrBusy = errors.New("session busy")

	// ErrIllegalTransition rejects a request the current status does not allow.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrStale reports that the session was reset while a request was out.
	ErrStale = errors.New("session reset during request")
)

// Backend is the service surface the orchestrator drives.
type Backend interface {
	Upload(ctx context.Context, file types.FileHandle) (backend.UploadResult, error)
	Generate(ctx context.Context, fileID string) error
	Status(ctx context.Context, fileID string) (types.JobStatus, error)
	Availability(ctx context.Context, fileID string) (types.JobStatus, error)
	Download(ctx context.Context, fileID, artifactType string) (*backend.Artifact, error)
}

// Notifier is the part of the Notification Center the orchestrator uses.
type Notifier interface {
	Show(kind notify.Kind, title, message string, opts ...notify.ShowOption) string
	DismissGroup(group string) int
}

// History records session progress.
type History interface {
	RecordSession(ctx context.Context, rec types.SessionRecord) error
}

// Orchestrator is the session state machine.
type Orchestrator struct {
	backend   Backend
	cfg       types.ClientConfig
	notes     Notifier
	errs      *errclass.Classifier
	poller    *poller.Poller
	downloads *download.Coordinator
	history   History
	log       *zap.Logger
	onChange  func()
	now       func() time.Time

	mu       sync.Mutex
	s        types.Session
	epoch    uint64
	key      string
	started  time.Time
	terminal chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier routes user-facing messages to n.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notes = n }
}

// WithClassifier supplies the error classifier. Without one, New builds
// a classifier that notifies through the configured Notifier.
func WithClassifier(c *errclass.Classifier) Option {
	return func(o *Orchestrator) { o.errs = c }
}

// WithHistory records every transition in h.
func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithOnChange registers a callback fired after the Session or a
// DownloadState changes. It is never called with internal locks held.
func WithOnChange(fn func()) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// New creates an idle Orchestrator.
func New(b Backend, cfg types.ClientConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend: b,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
		s:       types.Session{Status: types.StatusIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.errs == nil {
		copts := []errclass.Option{
			errclass.WithSuggestionDelay(cfg.Notify.SuggestionDelay),
			errclass.WithLogger(o.log.Named("errors")),
		}
		if o.notes != nil {
			copts = append(copts, errclass.WithNotifier(o.notes))
		}
		o.errs = errclass.New(copts...)
	}
	o.poller = poller.New(o.fetchStatus, cfg.Poll, o.log.Named("poller"))
	o.downloads = download.New(b, cfg.Download,
		download.WithLogger(o.log.Named("download")),
		download.WithOnChange(o.changed))
	return o
}

// Snapshot returns a copy of the Session.
func (o *Orchestrator) Snapshot() types.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.s
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	return s
}

// Downloads returns the artifact states of the current session.
func (o *Orchestrator) Downloads() []download.State {
	return o.downloads.States()
}

// Classifier returns the error classifier.
func (o *Orchestrator) Classifier() *errclass.Classifier {
	return o.errs
}

// PollActive reports whether status polling is running.
func (o *Orchestrator) PollActive() bool {
	return o.poller.Active()
}

// SelectFile starts a new session for file, discarding any finished one.
// An unacceptable file leaves the session idle and produces exactly one
// validation report.
func (o *Orchestrator) SelectFile(file types.FileHandle) error {
	o.mu.Lock()
	if o.s.Status == types.StatusUploading || o.s.Status == types.StatusProcessing {
		status := o.s.Status
		o.mu.Unlock()
		return fmt.Errorf("selecting %s while %s: %w", file.Name, status, ErrBusy)
	}
	oldKey := o.resetLocked()

	if problems := CheckFile(file, o.cfg.Upload); len(problems) > 0 {
		o.mu.Unlock()
		o.cleanup(oldKey)
		err := &errclass.ValidationError{File: file.Name, Problems: problems}
		o.errs.Classify(err, errclass.ContextValidation)
		o.changed()
		return err
	}

	o.key = uuid.NewString()
	o.started = o.now()
	o.s.File = &file
	o.s.Message = fmt.Sprintf("%s selected (%s)", file.Name, formatBytes(file.Size))
	o.setStatusLocked(types.StatusFileSelected)
	rec := o.recordLocked()
	o.mu.Unlock()

	o.cleanup(oldKey)
	o.record(rec)
	o.changed()
	return nil
}

// Generate uploads the selected file, triggers generation, and starts
// status polling. On failure the session returns to file_selected.
func (o *Orchestrator) Generate(ctx context.Context) error {
	o.mu.Lock()
	switch o.s.Status {
	case types.StatusFileSelected:
	case types.StatusUploading, types.StatusProcessing:
		o.mu.Unlock()
		return fmt.Errorf("generate: %w", ErrBusy)
	default:
		status := o.s.Status
		o.mu.Unlock()
		return fmt.Errorf("generate from %s: %w", status, ErrIllegalTransition)
	}
	file := *o.s.File
	epoch, key := o.epoch, o.key
	o.s.Progress = 0
	o.s.Message = "Uploading " + file.Name
	o.setStatusLocked(types.StatusUploading)
	rec := o.recordLocked()
	o.mu.Unlock()
	o.record(rec)
	o.changed()

	res, err := o.backend.Upload(ctx, file)
	if err != nil {
		return o.abortUpload(epoch, key, file, errclass.ContextUpload, "Upload failed", err)
	}
	o.log.Info("upload accepted", zap.String("file", file.Name), zap.String("id", res.FileID))

	if !o.update(epoch, func() { o.s.Message = "Starting generation" }) {
		return ErrStale
	}

	if err := o.backend.Generate(ctx, res.FileID); err != nil {
		return o.abortUpload(epoch, key, file, errclass.ContextProcessing, "Could not start generation", err)
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return ErrStale
	}
	o.s.ID = res.FileID
	o.s.Message = "Processing transcript"
	o.setStatusLocked(types.StatusProcessing)
	o.terminal = make(chan struct{})
	o.poller.Start(res.FileID, func(obs poller.Observation) { o.handlePoll(epoch, obs) })
	rec = o.recordLocked()
	o.mu.Unlock()

	o.record(rec)
	o.show(notify.KindInfo, "Upload complete", "Generating minutes for "+file.Name, key)
	o.changed()
	return nil
}

// abortUpload returns an uploading session to file_selected and reports
// err.
func (o *Orchestrator) abortUpload(epoch uint64, key string, file types.FileHandle, ctx errclass.Context, message string, err error) error {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return ErrStale
	}
	o.s.Message = message
	o.s.Progress = 0
	o.setStatusLocked(types.StatusFileSelected)
	rec := o.recordLocked()
	o.mu.Unlock()

	o.record(rec)
	o.errs.Classify(err, ctx, errclass.WithGroup(key), errclass.WithActions(
		notify.Action{Label: "Retry", Handler: o.retryGenerate},
		notify.Action{Label: "Reset", Handler: o.Reset},
	))
	o.changed()
	return err
}

// handlePoll folds one status observation into the Session.
func (o *Orchestrator) handlePoll(epoch uint64, obs poller.Observation) {
	defer o.errs.Recover()

	o.mu.Lock()
	if epoch != o.epoch || o.s.Status != types.StatusProcessing || obs.ID != o.s.ID {
		o.mu.Unlock()
		o.log.Debug("ignoring status for inactive session", zap.String("id", obs.ID))
		return
	}
	key, file := o.key, *o.s.File

	switch {
	case obs.Err != nil && obs.Exhausted:
		o.s.Message = "Lost contact with the processing job"
		o.finishLocked(types.StatusFailed)
		rec := o.recordLocked()
		o.mu.Unlock()

		o.record(rec)
		err := fmt.Errorf("%w after %d attempts: %w", errclass.ErrPollThreshold, obs.Failures, obs.Err)
		o.errs.Classify(err, errclass.ContextProcessing, errclass.WithGroup(key), o.failedActions(file))

	case obs.Err != nil:
		o.s.Message = fmt.Sprintf("Status check failed (%d/%d), retrying", obs.Failures, o.cfg.Poll.FailureThreshold)
		o.mu.Unlock()
		o.errs.Classify(obs.Err, errclass.ContextProcessing, errclass.Suppress())

	case obs.Status.Failed():
		o.s.Progress = obs.Status.Progress
		o.s.Message = "Processing failed"
		o.finishLocked(types.StatusFailed)
		rec := o.recordLocked()
		o.mu.Unlock()

		o.record(rec)
		reason := obs.Status.Error
		if reason == "" {
			reason = obs.Status.Message
		}
		o.errs.Classify(&errclass.JobFailedError{Reason: reason}, errclass.ContextProcessing,
			errclass.WithGroup(key), o.failedActions(file))

	case obs.Status.Completed():
		id := o.s.ID
		o.s.Progress = 100
		o.s.Message = "Finishing up"
		o.mu.Unlock()
		o.complete(epoch, id, key)

	default:
		o.s.Progress = obs.Status.Progress
		o.s.Message = obs.Status.Message
		if o.s.Message == "" {
			o.s.Message = obs.Status.Status
		}
		rec := o.recordLocked()
		o.mu.Unlock()
		o.record(rec)
	}
	o.changed()
}

// complete prepares the downloads, then marks the session completed.
// Availability is advisory: if the check fails every configured artifact
// is offered.
func (o *Orchestrator) complete(epoch uint64, id, key string) {
	var available map[string]bool
	st, err := o.backend.Availability(context.Background(), id)
	if err != nil {
		o.log.Warn("availability check failed", zap.String("id", id), zap.Error(err))
	} else {
		available = st.Artifacts
	}

	if !o.current(epoch) {
		return
	}
	o.downloads.Init(id, available)

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.downloads.Reset()
		return
	}
	o.s.Message = "Minutes ready"
	o.finishLocked(types.StatusCompleted)
	rec := o.recordLocked()
	o.mu.Unlock()

	o.record(rec)
	o.show(notify.KindSuccess, "Minutes ready", "Your meeting minutes are ready to download.", key)
}

// Download saves one artifact of a completed session.
func (o *Orchestrator) Download(ctx context.Context, artifact string) (string, error) {
	o.mu.Lock()
	if o.s.Status != types.StatusCompleted {
		status := o.s.Status
		o.mu.Unlock()
		return "", fmt.Errorf("download from %s: %w", status, ErrIllegalTransition)
	}
	key, epoch := o.key, o.epoch
	o.mu.Unlock()

	path, err := o.downloads.Download(ctx, artifact)
	if !o.current(epoch) {
		return path, errors.Join(ErrStale, err)
	}
	o.reportDownload(key, artifact, path, err)
	return path, err
}

// DownloadAll saves every available artifact concurrently.
func (o *Orchestrator) DownloadAll(ctx context.Context) ([]download.Result, error) {
	o.mu.Lock()
	if o.s.Status != types.StatusCompleted {
		status := o.s.Status
		o.mu.Unlock()
		return nil, fmt.Errorf("download from %s: %w", status, ErrIllegalTransition)
	}
	key, epoch := o.key, o.epoch
	o.mu.Unlock()

	results, err := o.downloads.DownloadAll(ctx)
	if !o.current(epoch) {
		return results, errors.Join(ErrStale, err)
	}
	for _, r := range results {
		o.reportDownload(key, r.Artifact, r.Path, r.Err)
	}
	return results, err
}

func (o *Orchestrator) reportDownload(key, artifact, path string, err error) {
	switch {
	case err == nil:
		o.show(notify.KindSuccess, "Download complete", filepath.Base(path), key)
	case errors.Is(err, download.ErrNotIdle),
		errors.Is(err, download.ErrUnavailable),
		errors.Is(err, download.ErrUnknownArtifact),
		errors.Is(err, download.ErrStale):
	default:
		o.errs.Classify(err, errclass.ContextDownload,
			errclass.WithGroup(key),
			errclass.WithTitle(fmt.Sprintf("%s download failed", artifactLabel(artifact))),
			errclass.WithActions(
				notify.Action{Label: "Retry", Handler: func() { o.retryDownload(artifact) }},
				notify.Action{Label: "Reset", Handler: o.Reset},
			))
	}
}

// Reset returns to idle from any status. It stops polling, orphans
// in-flight requests, clears downloads, and removes the session's
// notifications. Calling it twice is the same as calling it once.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	key := o.resetLocked()
	o.mu.Unlock()

	o.cleanup(key)
	o.changed()
}

// Wait blocks until the processing run reaches completed or failed, or the
// session is reset, and returns the Session at that point.
func (o *Orchestrator) Wait(ctx context.Context) (types.Session, error) {
	o.mu.Lock()
	ch := o.terminal
	status := o.s.Status
	o.mu.Unlock()

	if ch == nil {
		if status.Terminal() {
			return o.Snapshot(), nil
		}
		return o.Snapshot(), fmt.Errorf("wait from %s: %w", status, ErrIllegalTransition)
	}
	select {
	case <-ch:
		return o.Snapshot(), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// resetLocked clears the Session and returns the notification group of
// the discarded session.
func (o *Orchestrator) resetLocked() string {
	o.epoch++
	o.poller.Stop()
	if o.s.Status != types.StatusIdle {
		o.log.Info("session reset", zap.String("from", string(o.s.Status)), zap.String("id", o.s.ID))
	}
	o.s = types.Session{Status: types.StatusIdle}
	if o.terminal != nil {
		close(o.terminal)
		o.terminal = nil
	}
	key := o.key
	o.key = ""
	return key
}

// cleanup runs the reset side effects that call out of the orchestrator.
func (o *Orchestrator) cleanup(key string) {
	o.downloads.Reset()
	o.errs.CancelPending()
	if key != "" && o.notes != nil {
		o.notes.DismissGroup(key)
	}
}

func (o *Orchestrator) finishLocked(status types.SessionStatus) {
	o.setStatusLocked(status)
	o.poller.Stop()
	if o.terminal != nil {
		close(o.terminal)
		o.terminal = nil
	}
}

func (o *Orchestrator) setStatusLocked(to types.SessionStatus) {
	from := o.s.Status
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("session: illegal transition %s -> %s", from, to))
	}
	o.s.Status = to
	o.log.Info("session transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("id", o.s.ID))
}

// update applies fn if epoch is still current.
func (o *Orchestrator) update(epoch uint64, fn func()) bool {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return false
	}
	fn()
	o.mu.Unlock()
	o.changed()
	return true
}

func (o *Orchestrator) current(epoch uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return epoch == o.epoch
}

func (o *Orchestrator) recordLocked() types.SessionRecord {
	rec := types.SessionRecord{
		Key:       o.key,
		FileID:    o.s.ID,
		Status:    o.s.Status,
		Progress:  o.s.Progress,
		Message:   o.s.Message,
		StartedAt: o.started,
		UpdatedAt: o.now(),
	}
	if o.s.File != nil {
		rec.FileName = o.s.File.Name
	}
	return rec
}

func (o *Orchestrator) record(rec types.SessionRecord) {
	if o.history == nil || rec.Key == "" {
		return
	}
	if err := o.history.RecordSession(context.Background(), rec); err != nil {
		o.log.Warn("recording session history failed", zap.Error(err))
	}
}

func (o *Orchestrator) show(kind notify.Kind, title, message, group string) {
	if o.notes != nil {
		o.notes.Show(kind, title, message, notify.WithGroup(group))
	}
}

func (o *Orchestrator) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}

// fetchStatus is the poller's fetch path. A panic becomes an unknown
// error report and a failed poll.
func (o *Orchestrator) fetchStatus(ctx context.Context, id string) (st types.JobStatus, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic in status request: %v", v)
			o.errs.Classify(err, errclass.ContextUnknown)
		}
	}()
	return o.backend.Status(ctx, id)
}

func (o *Orchestrator) failedActions(file types.FileHandle) errclass.ClassifyOption {
	return errclass.WithActions(
		notify.Action{Label: "Retry", Handler: func() { o.retryFile(file) }},
		notify.Action{Label: "Reset", Handler: o.Reset},
	)
}

// retryGenerate re-runs Generate for the selected file.
func (o *Orchestrator) retryGenerate() {
	go func() {
		defer o.errs.Recover()
		if err := o.Generate(context.Background()); err != nil {
			o.log.Debug("retry generate", zap.Error(err))
		}
	}()
}

// retryFile starts a fresh session for file after a failed run.
func (o *Orchestrator) retryFile(file types.FileHandle) {
	go func() {
		defer o.errs.Recover()
		if err := o.SelectFile(file); err != nil {
			return
		}
		if err := o.Generate(context.Background()); err != nil {
			o.log.Debug("retry file", zap.Error(err))
		}
	}()
}

// retryDownload waits for the artifact's error display to revert, then
// downloads it again.
func (o *Orchestrator) retryDownload(artifact string) {
	go func() {
		defer o.errs.Recover()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Download.ErrorRevert+time.Second)
		defer cancel()
		if err := o.downloads.WaitIdle(ctx, artifact); err != nil {
			o.log.Debug("retry download", zap.String("artifact", artifact), zap.Error(err))
			return
		}
		if _, err := o.Download(context.Background(), artifact); err != nil {
			o.log.Debug("retry download", zap.String("artifact", artifact), zap.Error(err))
		}
	}()
}

func artifactLabel(artifact string) string {
	switch artifact {
	case types.ArtifactWord:
		return "Word"
	case types.ArtifactPDF:
		return "PDF"
	default:
		return artifact
	}
}
