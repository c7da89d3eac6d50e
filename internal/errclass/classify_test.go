// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package errclass

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/rapid-minutes/internal/backend"
	"github.com/pdiddy/rapid-minutes/internal/notify"
)

var epoch = time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

func httpErr(code int) error {
	return &backend.HTTPError{StatusCode: code, Method: "POST", URL: "/api/generate/abc123"}
}

func TestBuild_StatusMapping(t *testing.T) {
	tests := []struct {
		code int
		kind Kind
		msg  string
	}{
		{400, KindValidation, "Malformed request."},
		{401, KindNetwork, "Authentication required."},
		{403, KindNetwork, "Access denied."},
		{404, KindNetwork, "Resource not found."},
		{413, KindValidation, "File exceeds the size limit."},
		{429, KindNetwork, "Rate limited, retry later."},
		{500, KindNetwork, "Server error, retry later."},
		{502, KindNetwork, "Service unavailable."},
		{503, KindNetwork, "Service unavailable."},
		{504, KindNetwork, "Service unavailable."},
		{418, KindNetwork, "Request failed with HTTP 418."},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			r := Build(fmt.Errorf("generate: %w", httpErr(tt.code)), ContextProcessing, epoch)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.code, r.HTTPStatus)
			assert.Equal(t, tt.msg, r.Message)
			assert.Equal(t, ContextProcessing, r.Context)
			assert.Equal(t, epoch, r.Timestamp)
		})
	}
}

func TestBuild_NoResponse(t *testing.T) {
	err := &url.Error{Op: "Get", URL: "http://localhost:8000/api/status/abc123", Err: errors.New("connection refused")}
	r := Build(err, ContextUpload, epoch)
	assert.Equal(t, KindNetwork, r.Kind)
	assert.Zero(t, r.HTTPStatus)
	assert.Equal(t, "Unable to reach the server.", r.Message)
	assert.Contains(t, r.Detail, "connection refused")
}

func TestBuild_ProcessingFailures(t *testing.T) {
	r := Build(&JobFailedError{Reason: "model timeout"}, ContextProcessing, epoch)
	assert.Equal(t, KindProcessing, r.Kind)
	assert.Equal(t, "Processing failed: model timeout", r.Message)
	assert.True(t, errors.Is(&JobFailedError{}, ErrJobFailed))

	r = Build(fmt.Errorf("session abc: %w", ErrPollThreshold), ContextProcessing, epoch)
	assert.Equal(t, KindProcessing, r.Kind)
}

func TestBuild_Validation(t *testing.T) {
	r := Build(&ValidationError{File: "notes.pdf", Problems: []string{"only .txt files are accepted"}}, ContextValidation, epoch)
	assert.Equal(t, KindValidation, r.Kind)
	assert.Equal(t, "Invalid file: only .txt files are accepted.", r.Message)
	assert.Empty(t, r.Suggestions)
}

func TestBuild_DownloadContextOverridesKind(t *testing.T) {
	r := Build(httpErr(404), ContextDownload, epoch)
	assert.Equal(t, KindDownload, r.Kind)
	assert.Equal(t, 404, r.HTTPStatus)
	assert.Len(t, r.Suggestions, 2)
}

func TestBuild_Unknown(t *testing.T) {
	r := Build(errors.New("boom"), ContextUnknown, epoch)
	assert.Equal(t, KindUnknown, r.Kind)
	assert.Equal(t, "boom", r.Detail)
	assert.Nil(t, r.Suggestions)
}

func TestSuggestionsAreCopies(t *testing.T) {
	s := Suggestions(ContextUpload)
	require.Len(t, s, 3)
	s[0] = "changed"
	assert.NotEqual(t, "changed", Suggestions(ContextUpload)[0])
}

// recorder captures notifications shown by the classifier.
type recorder struct {
	mu    sync.Mutex
	shown []notify.Notification
}

func (r *recorder) Show(kind notify.Kind, title, message string, opts ...notify.ShowOption) string {
	n := notify.Notification{Kind: kind, Title: title, Message: message}
	for _, opt := range opts {
		opt(&n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
	return fmt.Sprint(len(r.shown))
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.shown...)
}

type memArchive struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (a *memArchive) AppendReport(_ context.Context, r Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, r)
	return a.err
}

func TestClassify_NotifiesAndQueuesSuggestions(t *testing.T) {
	rec := &recorder{}
	c := New(WithNotifier(rec), WithSuggestionDelay(20*time.Millisecond))

	r := c.Classify(httpErr(500), ContextProcessing, WithGroup("s1"))
	assert.Equal(t, KindNetwork, r.Kind)

	shown := rec.all()
	require.Len(t, shown, 1)
	assert.Equal(t, notify.KindError, shown[0].Kind)
	assert.Equal(t, "Processing failed", shown[0].Title)
	assert.Equal(t, "s1", shown[0].Group)
	assert.Equal(t, 1, c.Pending())

	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	sug := rec.all()[1]
	assert.Equal(t, notify.KindInfo, sug.Kind)
	assert.Equal(t, "Suggestions", sug.Title)
	assert.Equal(t, "s1", sug.Group)
	assert.Contains(t, sug.Message, "timed out")
	assert.Zero(t, c.Pending())
}

func TestClassify_CancelPending(t *testing.T) {
	rec := &recorder{}
	c := New(WithNotifier(rec), WithSuggestionDelay(30*time.Millisecond))

	c.Classify(httpErr(500), ContextUpload)
	c.CancelPending()
	assert.Zero(t, c.Pending())

	time.Sleep(80 * time.Millisecond)
	assert.Len(t, rec.all(), 1)
}

func TestClassify_DownloadHasNoDelayedSuggestions(t *testing.T) {
	rec := &recorder{}
	c := New(WithNotifier(rec), WithSuggestionDelay(time.Millisecond))

	c.Classify(httpErr(404), ContextDownload)
	assert.Zero(t, c.Pending())
	assert.Len(t, rec.all(), 1)
}

func TestClassify_SuppressAndActions(t *testing.T) {
	rec := &recorder{}
	c := New(WithNotifier(rec))

	c.Classify(httpErr(503), ContextProcessing, Suppress())
	assert.Empty(t, rec.all())
	assert.Len(t, c.Log(), 1)

	retry := notify.Action{Label: "Retry", Handler: func() {}}
	c.Classify(httpErr(503), ContextDownload, WithActions(retry), WithTitle("Word download failed"))
	shown := rec.all()
	require.Len(t, shown, 1)
	assert.Equal(t, "Word download failed", shown[0].Title)
	require.Len(t, shown[0].Actions, 1)
	assert.Equal(t, "Retry", shown[0].Actions[0].Label)
}

func TestClassify_RingLogTrims(t *testing.T) {
	c := New()
	for i := 0; i < LogCapacity; i++ {
		c.Classify(fmt.Errorf("err %d", i), ContextUnknown)
	}
	require.Len(t, c.Log(), LogCapacity)

	c.Classify(errors.New("err 50"), ContextUnknown)
	log := c.Log()
	require.Len(t, log, LogRetain)
	assert.Equal(t, "err 26", log[0].Detail)
	assert.Equal(t, "err 50", log[len(log)-1].Detail)
}

func TestClassify_ArchivesAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	arch := &memArchive{err: errors.New("disk full")}
	c := New(WithArchive(arch), WithLogger(zap.New(core)))

	c.Classify(httpErr(413), ContextUpload)

	require.Len(t, arch.reports, 1)
	assert.Equal(t, KindValidation, arch.reports[0].Kind)
	assert.Equal(t, 1, logs.FilterMessage("error classified").Len())
	assert.Equal(t, 1, logs.FilterMessage("archiving error report failed").Len())
}

func TestRecover(t *testing.T) {
	rec := &recorder{}
	c := New(WithNotifier(rec))

	func() {
		defer c.Recover()
		panic("nil map write")
	}()

	log := c.Log()
	require.Len(t, log, 1)
	assert.Equal(t, KindUnknown, log[0].Kind)
	assert.Equal(t, "panic: nil map write", log[0].Detail)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, "Unexpected error", rec.all()[0].Title)
}
