// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download manages per-artifact retrieval for a completed session.
//
// Each artifact type has one State that moves Idle -> InFlight ->
// Completed or Error, and back to Idle after a display delay. Artifacts
// the backend has not produced sit in Unavailable until a refresh finds
// them.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/rapid-minutes/internal/backend"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// Phase is the lifecycle position of one artifact.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseInFlight    Phase = "in_flight"
	PhaseCompleted   Phase = "completed"
	PhaseError       Phase = "error"
	PhaseUnavailable Phase = "unavailable"
)

var (
	// ErrNotIdle rejects a download while the artifact is in flight or
	// still showing its last result.
	ErrNotIdle = errors.New("download not idle")

	// ErrUnavailable rejects a download the backend has not produced.
	ErrUnavailable = errors.New("artifact not available")

	// ErrUnknownArtifact rejects an artifact type with no state.
	ErrUnknownArtifact = errors.New("unknown artifact type")

	// ErrStale marks a download that finished after its session was reset.
	ErrStale = errors.New("download outlived its session")
)

// State is the visible state of one artifact.
type State struct {
	Artifact  string    `json:"artifact" yaml:"artifact"`
	Phase     Phase     `json:"phase" yaml:"phase"`
	EnabledAt time.Time `json:"enabled_at" yaml:"enabled_at"`
	// Path is where the last successful download was written.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Pages is the page count of a saved PDF, zero when unknown.
	Pages int `json:"pages,omitempty" yaml:"pages,omitempty"`
	// Err is the last failure, cleared when a new download starts.
	Err error `json:"-" yaml:"-"`
}

// Fetcher is the backend surface the coordinator needs.
type Fetcher interface {
	Download(ctx context.Context, fileID, artifactType string) (*backend.Artifact, error)
	Availability(ctx context.Context, fileID string) (types.JobStatus, error)
}

// Coordinator owns the DownloadStates of the current session.
type Coordinator struct {
	fetcher  Fetcher
	cfg      types.DownloadConfig
	log      *zap.Logger
	onChange func()
	now      func() time.Time

	mu        sync.Mutex
	epoch     uint64
	sessionID string
	order     []string
	states    map[string]*State
	timers    map[string]*time.Timer
	// idle holds one channel per artifact with a pending revert; it is
	// closed when the artifact returns to Idle or the session is reset.
	idle map[string]chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithOnChange registers a callback fired after every phase change,
// outside the coordinator's lock.
func WithOnChange(fn func()) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithClock overrides time.Now for fallback file names.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator with no session.
func New(fetcher Fetcher, cfg types.DownloadConfig, opts ...Option) *Coordinator {
	if cfg.SuccessRevert <= 0 {
		cfg.SuccessRevert = 3 * time.Second
	}
	if cfg.ErrorRevert <= 0 {
		cfg.ErrorRevert = 5 * time.Second
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	c := &Coordinator{
		fetcher: fetcher,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
		states:  make(map[string]*State),
		timers:  make(map[string]*time.Timer),
		idle:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init binds the coordinator to sessionID and creates one State per
// configured artifact. Artifacts present in available with a true value
// start Idle, the rest Unavailable. A nil map marks every artifact Idle.
func (c *Coordinator) Init(sessionID string, available map[string]bool) {
	c.mu.Lock()
	c.resetLocked()
	c.sessionID = sessionID
	now := c.now()
	for _, a := range c.cfg.Artifacts {
		s := &State{Artifact: a, Phase: PhaseUnavailable}
		if available == nil || available[a] {
			s.Phase = PhaseIdle
			s.EnabledAt = now
		}
		c.states[a] = s
		c.order = append(c.order, a)
	}
	c.mu.Unlock()

	c.log.Debug("downloads initialised", zap.String("id", sessionID), zap.Any("available", available))
	c.changed()
}

// Refresh asks the backend which artifacts exist and promotes newly
// available ones to Idle.
func (c *Coordinator) Refresh(ctx context.Context) (map[string]bool, error) {
	c.mu.Lock()
	id, epoch := c.sessionID, c.epoch
	c.mu.Unlock()
	if id == "" {
		return nil, fmt.Errorf("refreshing downloads: no session")
	}

	st, err := c.fetcher.Availability(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil, ErrStale
	}
	now := c.now()
	for _, a := range c.order {
		s := c.states[a]
		if s.Phase == PhaseUnavailable && st.Artifacts[a] {
			s.Phase = PhaseIdle
			s.EnabledAt = now
		}
	}
	c.mu.Unlock()

	c.changed()
	return st.Artifacts, nil
}

// Download retrieves one artifact into the output directory and returns
// the written path. A call for an artifact that is not Idle is rejected
// without side effects.
func (c *Coordinator) Download(ctx context.Context, artifact string) (string, error) {
	c.mu.Lock()
	s, ok := c.states[artifact]
	switch {
	case !ok:
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrUnknownArtifact, artifact)
	case s.Phase == PhaseUnavailable:
		c.mu.Unlock()
		return "", fmt.Errorf("%s: %w", artifact, ErrUnavailable)
	case s.Phase != PhaseIdle:
		c.mu.Unlock()
		return "", fmt.Errorf("%s is %s: %w", artifact, s.Phase, ErrNotIdle)
	}
	s.Phase = PhaseInFlight
	s.Err = nil
	id, epoch := c.sessionID, c.epoch
	c.mu.Unlock()
	c.changed()

	c.log.Info("downloading artifact", zap.String("id", id), zap.String("artifact", artifact))
	path, err := c.fetch(ctx, id, artifact)
	pages := 0
	if err == nil && artifact == types.ArtifactPDF {
		pages = c.pageCount(path)
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.log.Debug("discarding stale download", zap.String("id", id), zap.String("artifact", artifact))
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStale, err)
		}
		return path, ErrStale
	}
	delay := c.cfg.SuccessRevert
	if err != nil {
		s.Phase = PhaseError
		s.Err = err
		delay = c.cfg.ErrorRevert
	} else {
		s.Phase = PhaseCompleted
		s.Path = path
		s.Pages = pages
	}
	c.scheduleRevertLocked(artifact, epoch, delay)
	c.mu.Unlock()
	c.changed()

	if err != nil {
		c.log.Warn("download failed", zap.String("artifact", artifact), zap.Error(err))
		return "", err
	}
	c.log.Info("download saved", zap.String("artifact", artifact), zap.String("path", path))
	return path, nil
}

// Result is the outcome of one artifact in DownloadAll.
type Result struct {
	Artifact string
	Path     string
	Err      error
}

// DownloadAll retrieves every Idle artifact concurrently. Results follow
// the configured artifact order; the error is the first failure.
func (c *Coordinator) DownloadAll(ctx context.Context) ([]Result, error) {
	c.mu.Lock()
	var idle []string
	for _, a := range c.order {
		if c.states[a].Phase == PhaseIdle {
			idle = append(idle, a)
		}
	}
	c.mu.Unlock()

	results := make([]Result, len(idle))
	var g errgroup.Group
	for i, a := range idle {
		g.Go(func() error {
			p, err := c.Download(ctx, a)
			results[i] = Result{Artifact: a, Path: p, Err: err}
			return err
		})
	}
	err := g.Wait()
	return results, err
}

// States returns a copy of every State in configured order.
func (c *Coordinator) States() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, 0, len(c.order))
	for _, a := range c.order {
		out = append(out, *c.states[a])
	}
	return out
}

// State returns the state of one artifact.
func (c *Coordinator) State(artifact string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[artifact]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// WaitIdle blocks until artifact is Idle again. It returns ErrStale when
// the session is reset while waiting.
func (c *Coordinator) WaitIdle(ctx context.Context, artifact string) error {
	for {
		c.mu.Lock()
		s, ok := c.states[artifact]
		switch {
		case !ok:
			c.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownArtifact, artifact)
		case s.Phase == PhaseIdle:
			c.mu.Unlock()
			return nil
		case s.Phase == PhaseUnavailable:
			c.mu.Unlock()
			return fmt.Errorf("%s: %w", artifact, ErrUnavailable)
		}
		ch, ok := c.idle[artifact]
		if !ok {
			ch = make(chan struct{})
			c.idle[artifact] = ch
		}
		epoch := c.epoch
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		stale := epoch != c.epoch
		c.mu.Unlock()
		if stale {
			return ErrStale
		}
	}
}

// Reset drops every State and orphans in-flight downloads.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) resetLocked() {
	c.epoch++
	for a, t := range c.timers {
		t.Stop()
		delete(c.timers, a)
	}
	for a, ch := range c.idle {
		close(ch)
		delete(c.idle, a)
	}
	c.sessionID = ""
	c.order = nil
	c.states = make(map[string]*State)
}

func (c *Coordinator) scheduleRevertLocked(artifact string, epoch uint64, delay time.Duration) {
	if t, ok := c.timers[artifact]; ok {
		t.Stop()
	}
	c.timers[artifact] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		s, ok := c.states[artifact]
		if epoch != c.epoch || !ok || (s.Phase != PhaseCompleted && s.Phase != PhaseError) {
			c.mu.Unlock()
			return
		}
		s.Phase = PhaseIdle
		s.EnabledAt = c.now()
		delete(c.timers, artifact)
		if ch, ok := c.idle[artifact]; ok {
			close(ch)
			delete(c.idle, artifact)
		}
		c.mu.Unlock()
		c.changed()
	})
}

// pageCount inspects a saved PDF. An unreadable file is still a completed
// download; the backend owns its content.
func (c *Coordinator) pageCount(path string) int {
	n, err := api.PageCountFile(path)
	if err != nil {
		c.log.Warn("saved PDF could not be read", zap.String("path", path), zap.Error(err))
		return 0
	}
	return n
}

func (c *Coordinator) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// fetch downloads to a temporary file and renames it into place.
func (c *Coordinator) fetch(ctx context.Context, id, artifact string) (string, error) {
	a, err := c.fetcher.Download(ctx, id, artifact)
	if err != nil {
		return "", err
	}
	defer a.Body.Close()

	name := ""
	if n, ok := ParseContentDisposition(a.Disposition); ok {
		name = safeName(n)
	}
	if name == "" {
		name = FallbackFilename(artifact, c.now())
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", c.cfg.OutputDir, err)
	}
	destPath := filepath.Join(c.cfg.OutputDir, name)

	tmpFile, err := os.CreateTemp(c.cfg.OutputDir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, a.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}
