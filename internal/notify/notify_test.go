// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRenderer captures renderer calls.
type recordingRenderer struct {
	mu        sync.Mutex
	shown     []Notification
	dismissed []string
}

func (r *recordingRenderer) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
}

func (r *recordingRenderer) Dismiss(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dismissed = append(r.dismissed, id)
}

func (r *recordingRenderer) dismissedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dismissed...)
}

func TestShow_AppendsInOrder(t *testing.T) {
	r := &recordingRenderer{}
	c := New(WithRenderer(r))
	defer c.Close()

	first := c.Show(KindError, "Upload failed", "server error")
	second := c.Show(KindInfo, "Tip", "try again")

	active := c.Active()
	require.Len(t, active, 2)
	assert.Equal(t, first, active[0].ID)
	assert.Equal(t, second, active[1].ID)
	assert.NotEqual(t, first, second)
	assert.Len(t, r.shown, 2)
}

func TestShow_NonErrorKindsAutoDismiss(t *testing.T) {
	for _, kind := range []Kind{KindSuccess, KindWarning, KindInfo} {
		t.Run(string(kind), func(t *testing.T) {
			r := &recordingRenderer{}
			c := New(WithRenderer(r), WithAutoDismiss(20*time.Millisecond))
			defer c.Close()

			id := c.Show(kind, "title", "message")
			require.Eventually(t, func() bool { return len(c.Active()) == 0 },
				time.Second, 5*time.Millisecond)
			assert.Equal(t, []string{id}, r.dismissedIDs())
		})
	}
}

func TestShow_ErrorNeverAutoDismisses(t *testing.T) {
	c := New(WithAutoDismiss(10 * time.Millisecond))
	defer c.Close()

	c.Show(KindError, "Processing failed", "model unavailable")
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, c.Active(), 1)
}

func TestDismiss(t *testing.T) {
	c := New()
	defer c.Close()

	id := c.Show(KindInfo, "a", "b")
	assert.True(t, c.Dismiss(id))
	assert.False(t, c.Dismiss(id), "second dismissal is a no-op")
	assert.Empty(t, c.Active())
}

func TestDismissAll(t *testing.T) {
	changes := 0
	c := New(WithOnChange(func() { changes++ }))
	defer c.Close()

	c.Show(KindError, "1", "")
	c.Show(KindWarning, "2", "")
	c.Show(KindSuccess, "3", "")

	assert.Equal(t, 3, c.DismissAll())
	assert.Empty(t, c.Active())
	assert.Equal(t, 0, c.DismissAll())
	assert.Equal(t, 4, changes)
}

func TestDismissGroup(t *testing.T) {
	c := New()
	defer c.Close()

	c.Show(KindError, "session error", "", WithGroup("s1"))
	keep := c.Show(KindError, "other", "", WithGroup("s2"))
	c.Show(KindInfo, "session info", "", WithGroup("s1"))

	assert.Equal(t, 2, c.DismissGroup("s1"))
	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, keep, active[0].ID)
	assert.Equal(t, 0, c.DismissGroup(""))
}

func TestInvoke(t *testing.T) {
	c := New()
	defer c.Close()

	retried := false
	id := c.Show(KindError, "Upload failed", "",
		WithActions(Action{Label: "Retry", Handler: func() { retried = true }}))

	require.NoError(t, c.Invoke(id, "Retry"))
	assert.True(t, retried)
	assert.Empty(t, c.Active())

	assert.Error(t, c.Invoke(id, "Retry"), "dismissed notifications cannot be invoked")

	other := c.Show(KindError, "x", "")
	assert.Error(t, c.Invoke(other, "Reset"))
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithRenderer(NewTextRenderer(&buf)))
	defer c.Close()

	c.Show(KindError, "Download failed", "server error\nretry later",
		WithActions(Action{Label: "Retry"}, Action{Label: "Reset"}))

	out := buf.String()
	assert.Contains(t, out, "Download failed")
	assert.Contains(t, out, "[Retry] [Reset]")
	assert.Contains(t, out, "  retry later")
}
