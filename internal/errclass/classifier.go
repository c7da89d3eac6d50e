// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package errclass

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/rapid-minutes/internal/notify"
)

// Ring log bounds: once the log holds more than LogCapacity reports it is
// cut back to the most recent LogRetain.
const (
	LogCapacity = 50
	LogRetain   = 25
)

// DefaultSuggestionDelay separates an error notification from its
// follow-up list of suggested fixes.
const DefaultSuggestionDelay = 2 * time.Second

// Notifier is the part of the Notification Center the classifier uses.
type Notifier interface {
	Show(kind notify.Kind, title, message string, opts ...notify.ShowOption) string
}

// Archive persists reports beyond the in-memory ring.
type Archive interface {
	AppendReport(ctx context.Context, r Report) error
}

// Classifier classifies failures and fans them out to the log, the
// archive and the Notification Center.
type Classifier struct {
	mu      sync.Mutex
	log     []Report
	pending map[*time.Timer]struct{}

	notifier        Notifier
	archive         Archive
	suggestionDelay time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithNotifier forwards reports to n.
func WithNotifier(n Notifier) Option {
	return func(c *Classifier) { c.notifier = n }
}

// WithArchive mirrors reports to a.
func WithArchive(a Archive) Option {
	return func(c *Classifier) { c.archive = a }
}

// WithSuggestionDelay overrides the gap before suggestions are shown.
func WithSuggestionDelay(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.suggestionDelay = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		pending:         make(map[*time.Timer]struct{}),
		suggestionDelay: DefaultSuggestionDelay,
		logger:          zap.NewNop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type classifyOptions struct {
	suppress bool
	title    string
	group    string
	actions  []notify.Action
}

// ClassifyOption adjusts how one report is surfaced.
type ClassifyOption func(*classifyOptions)

// Suppress records the report without notifying the user.
func Suppress() ClassifyOption {
	return func(o *classifyOptions) { o.suppress = true }
}

// WithTitle overrides the notification title.
func WithTitle(title string) ClassifyOption {
	return func(o *classifyOptions) { o.title = title }
}

// WithGroup tags the notifications so they can be cleared together.
func WithGroup(group string) ClassifyOption {
	return func(o *classifyOptions) { o.group = group }
}

// WithActions attaches recovery actions to the error notification.
func WithActions(actions ...notify.Action) ClassifyOption {
	return func(o *classifyOptions) { o.actions = append(o.actions, actions...) }
}

// Classify builds a report for raw, records it, and surfaces it.
func (c *Classifier) Classify(raw error, ctx Context, opts ...ClassifyOption) Report {
	var o classifyOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := Build(raw, ctx, c.now())

	c.mu.Lock()
	c.log = append(c.log, r)
	if len(c.log) > LogCapacity {
		c.log = append([]Report(nil), c.log[len(c.log)-LogRetain:]...)
	}
	c.mu.Unlock()

	c.logger.Warn("error classified",
		zap.String("kind", string(r.Kind)),
		zap.String("context", string(r.Context)),
		zap.Int("http_status", r.HTTPStatus),
		zap.String("message", r.Message),
		zap.String("detail", r.Detail),
		zap.Bool("suppressed", o.suppress))

	if c.archive != nil {
		if err := c.archive.AppendReport(context.Background(), r); err != nil {
			c.logger.Warn("archiving error report failed", zap.Error(err))
		}
	}

	if !o.suppress && c.notifier != nil {
		c.notify(r, o)
	}
	return r
}

func (c *Classifier) notify(r Report, o classifyOptions) {
	title := o.title
	if title == "" {
		title = defaultTitle(r.Context)
	}
	showOpts := []notify.ShowOption{notify.WithGroup(o.group)}
	if len(o.actions) > 0 {
		showOpts = append(showOpts, notify.WithActions(o.actions...))
	}
	c.notifier.Show(notify.KindError, title, r.Message, showOpts...)

	if len(r.Suggestions) == 0 {
		return
	}
	if r.Context != ContextUpload && r.Context != ContextProcessing {
		return
	}
	msg := "• " + strings.Join(r.Suggestions, "\n• ")
	group := o.group

	c.mu.Lock()
	var t *time.Timer
	t = time.AfterFunc(c.suggestionDelay, func() {
		c.mu.Lock()
		_, live := c.pending[t]
		delete(c.pending, t)
		c.mu.Unlock()
		if live {
			c.notifier.Show(notify.KindInfo, "Suggestions", msg, notify.WithGroup(group))
		}
	})
	c.pending[t] = struct{}{}
	c.mu.Unlock()
}

// Log returns the retained reports, oldest first.
func (c *Classifier) Log() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Report, len(c.log))
	for i, r := range c.log {
		r.Suggestions = append([]string(nil), r.Suggestions...)
		out[i] = r
	}
	return out
}

// Pending reports how many suggestion notifications are still queued.
func (c *Classifier) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// CancelPending drops queued suggestion notifications.
func (c *Classifier) CancelPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for t := range c.pending {
		t.Stop()
		delete(c.pending, t)
	}
}

// Recover classifies a panic in the calling goroutine as an unknown
// error. Use it as `defer c.Recover()`.
func (c *Classifier) Recover() {
	if v := recover(); v != nil {
		c.logger.Error("recovered panic", zap.Any("panic", v), zap.Stack("stack"))
		c.Classify(fmt.Errorf("panic: %v", v), ContextUnknown)
	}
}

func defaultTitle(ctx Context) string {
	switch ctx {
	case ContextUpload:
		return "Upload failed"
	case ContextProcessing:
		return "Processing failed"
	case ContextDownload:
		return "Download failed"
	case ContextValidation:
		return "Invalid file"
	default:
		return "Unexpected error"
	}
}
