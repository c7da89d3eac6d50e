// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify presents transient and persistent user messages.
//
// Notifications form an append-only stack. Success, warning and info
// notifications dismiss themselves after a fixed delay; error notifications
// stay until dismissed because failures must be acknowledged.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultAutoDismiss is the lifetime of non-error notifications.
const DefaultAutoDismiss = 5 * time.Second

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Persistent reports whether notifications of this kind wait for the user.
func (k Kind) Persistent() bool { return k == KindError }

// Action is a labelled recovery step attached to a notification.
type Action struct {
	Label   string
	Handler func()
}

// Notification is one entry in the stack.
type Notification struct {
	ID        string
	Kind      Kind
	Title     string
	Message   string
	Actions   []Action
	Group     string
	CreatedAt time.Time
}

// Renderer displays the stack. Calls are made outside the Center's lock
// in the order the changes happened.
type Renderer interface {
	Show(n Notification)
	Dismiss(id string)
}

// Center owns the notification stack.
type Center struct {
	mu          sync.Mutex
	active      []Notification
	timers      map[string]*time.Timer
	autoDismiss time.Duration
	renderer    Renderer
	onChange    func()
	now         func() time.Time
	log         *zap.Logger
}

// Option configures a Center.
type Option func(*Center)

// WithRenderer routes stack changes to r.
func WithRenderer(r Renderer) Option {
	return func(c *Center) { c.renderer = r }
}

// WithAutoDismiss overrides the non-error notification lifetime.
func WithAutoDismiss(d time.Duration) Option {
	return func(c *Center) {
		if d > 0 {
			c.autoDismiss = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Center) {
		if l != nil {
			c.log = l
		}
	}
}

// WithOnChange registers a callback fired after every stack change.
func WithOnChange(fn func()) Option {
	return func(c *Center) { c.onChange = fn }
}

// New creates an empty Center.
func New(opts ...Option) *Center {
	c := &Center{
		timers:      make(map[string]*time.Timer),
		autoDismiss: DefaultAutoDismiss,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShowOption decorates a notification before it is shown.
type ShowOption func(*Notification)

// WithActions attaches recovery actions in display order.
func WithActions(actions ...Action) ShowOption {
	return func(n *Notification) { n.Actions = append(n.Actions, actions...) }
}

// WithGroup tags the notification so DismissGroup can clear it.
func WithGroup(group string) ShowOption {
	return func(n *Notification) { n.Group = group }
}

// Show appends a notification and returns its id.
func (c *Center) Show(kind Kind, title, message string, opts ...ShowOption) string {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: c.now(),
	}
	for _, opt := range opts {
		opt(&n)
	}

	c.mu.Lock()
	c.active = append(c.active, n)
	if !kind.Persistent() {
		id := n.ID
		c.timers[id] = time.AfterFunc(c.autoDismiss, func() { c.Dismiss(id) })
	}
	c.mu.Unlock()

	c.log.Debug("notification shown",
		zap.String("id", n.ID),
		zap.String("kind", string(kind)),
		zap.String("title", title))

	if c.renderer != nil {
		c.renderer.Show(n)
	}
	c.changed()
	return n.ID
}

// Dismiss removes the notification with the given id. It reports whether
// the notification was still active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	removed := c.removeLocked(func(n Notification) bool { return n.ID == id })
	c.mu.Unlock()

	return c.afterRemoval(removed) > 0
}

// DismissAll clears the whole stack and returns how many were removed.
func (c *Center) DismissAll() int {
	c.mu.Lock()
	removed := c.removeLocked(func(Notification) bool { return true })
	c.mu.Unlock()

	return c.afterRemoval(removed)
}

// DismissGroup clears every notification tagged with group.
func (c *Center) DismissGroup(group string) int {
	if group == "" {
		return 0
	}
	c.mu.Lock()
	removed := c.removeLocked(func(n Notification) bool { return n.Group == group })
	c.mu.Unlock()

	return c.afterRemoval(removed)
}

// Active returns the stack, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	return out
}

// Invoke runs the named action of an active notification and dismisses it.
func (c *Center) Invoke(id, label string) error {
	c.mu.Lock()
	var handler func()
	found := false
	for _, n := range c.active {
		if n.ID != id {
			continue
		}
		found = true
		for _, a := range n.Actions {
			if a.Label == label {
				handler = a.Handler
				break
			}
		}
		break
	}
	c.mu.Unlock()

	if !found {
		return fmt.Errorf("notification %s is not active", id)
	}
	if handler == nil {
		return fmt.Errorf("notification %s has no action %q", id, label)
	}
	c.Dismiss(id)
	handler()
	return nil
}

// Close stops pending auto-dismiss timers. The stack is left as is.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Center) removeLocked(match func(Notification) bool) []string {
	var removed []string
	kept := c.active[:0]
	for _, n := range c.active {
		if match(n) {
			removed = append(removed, n.ID)
			if t, ok := c.timers[n.ID]; ok {
				t.Stop()
				delete(c.timers, n.ID)
			}
			continue
		}
		kept = append(kept, n)
	}
	c.active = kept
	return removed
}

func (c *Center) afterRemoval(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	if c.renderer != nil {
		for _, id := range ids {
			c.renderer.Dismiss(id)
		}
	}
	c.changed()
	return len(ids)
}

func (c *Center) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
