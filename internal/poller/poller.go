// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package poller queries backend job status at a fixed cadence until the
// job reaches a terminal state.
//
// One Poller is bound to at most one session id at a time. Every Start and
// Stop advances an epoch; a status response is only reported if the epoch
// it was issued under is still current, so responses that resolve after a
// Stop are discarded.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// FetchFunc retrieves the job status for a session id.
type FetchFunc func(ctx context.Context, id string) (types.JobStatus, error)

// Observation is the outcome of one status request.
type Observation struct {
	ID     string
	Status types.JobStatus
	// Err is the transport failure, nil when Status is valid.
	Err error
	// Failures counts consecutive failed requests, including this one.
	Failures int
	// Exhausted is set when Failures reached the threshold.
	Exhausted bool
	// Done is set when polling has stopped after this observation.
	Done bool
}

// ReportFunc receives observations on the poller's goroutine.
type ReportFunc func(Observation)

// Poller drives the status loop.
type Poller struct {
	fetch     FetchFunc
	interval  time.Duration
	threshold int
	log       *zap.Logger

	mu       sync.Mutex
	epoch    uint64
	id       string
	failures int
	cancel   context.CancelFunc
}

// New creates a Poller. Zero config values fall back to a 2s interval and
// a threshold of 3.
func New(fetch FetchFunc, cfg types.PollConfig, log *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		fetch:     fetch,
		interval:  cfg.Interval,
		threshold: cfg.FailureThreshold,
		log:       log,
	}
}

// Start begins polling id, replacing any loop already running, and
// returns the new epoch.
func (p *Poller) Start(id string, report ReportFunc) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.epoch++
	p.id = id
	p.failures = 0

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx, p.epoch, id, report)

	p.log.Debug("polling started", zap.String("id", id), zap.Uint64("epoch", p.epoch))
	return p.epoch
}

// Stop cancels the active loop. It does not wait for an outstanding
// request; that request's result is discarded. Calling Stop when nothing
// is running does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopLocked() {
		p.log.Debug("polling stopped", zap.String("id", p.id))
	}
}

// Active reports whether a loop is running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Epoch returns the current epoch.
func (p *Poller) Epoch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch
}

func (p *Poller) stopLocked() bool {
	if p.cancel == nil {
		return false
	}
	p.cancel()
	p.cancel = nil
	p.epoch++
	return true
}

// loop issues one request per tick. The request runs on the loop
// goroutine, so at most one is in flight; a tick that fires during a
// request is dropped rather than queued.
func (p *Poller) loop(ctx context.Context, epoch uint64, id string, report ReportFunc) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		obs, ok := p.poll(ctx, epoch, id)
		if !ok {
			return
		}
		report(obs)
		if obs.Done {
			return
		}

		select {
		case <-t.C:
			p.log.Debug("skipped tick during slow status request", zap.String("id", id))
		default:
		}
	}
}

// poll performs one request and folds its result into the failure
// streak. ok is false when the epoch moved on while the request was out.
func (p *Poller) poll(ctx context.Context, epoch uint64, id string) (Observation, bool) {
	st, err := p.fetch(ctx, id)

	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		p.log.Debug("discarding stale status response", zap.String("id", id), zap.Uint64("epoch", epoch))
		return Observation{}, false
	}

	obs := Observation{ID: id, Status: st, Err: err}
	if err != nil {
		p.failures++
		obs.Failures = p.failures
		obs.Exhausted = p.failures >= p.threshold
		obs.Done = obs.Exhausted
		p.log.Warn("status request failed",
			zap.String("id", id),
			zap.Int("consecutive", p.failures),
			zap.Int("threshold", p.threshold),
			zap.Error(err))
	} else {
		p.failures = 0
		obs.Done = st.Completed() || st.Failed()
	}

	if obs.Done {
		p.stopLocked()
	}
	return obs, true
}
