// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rapid-minutes/internal/backend"
	"github.com/pdiddy/rapid-minutes/internal/download"
	"github.com/pdiddy/rapid-minutes/internal/errclass"
	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

const interval = 10 * time.Millisecond

// step writes one status response.
type step func(w http.ResponseWriter)

func job(status string, progress int) step {
	return func(w http.ResponseWriter) {
		fmt.Fprintf(w, `{"file_id":"abc123","status":%q,"progress":%d,"message":"%s %d%%","error":null}`,
			status, progress, status, progress)
	}
}

func jobFailed(reason string) step {
	return func(w http.ResponseWriter) {
		fmt.Fprintf(w, `{"file_id":"abc123","status":"failed","progress":40,"error":%q}`, reason)
	}
}

func httpFail(code int) step {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
		fmt.Fprint(w, `{"detail":"status unavailable"}`)
	}
}

// fakeService is a scripted minutes backend.
type fakeService struct {
	mu           sync.Mutex
	generateCode int
	statuses     []step
	statusCalls  int
	uploadGate   chan struct{}
	// downloadGate blocks word downloads until closed; the first
	// wordFailures of them answer 500.
	downloadGate chan struct{}
	wordFailures int
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		if f.uploadGate != nil {
			<-f.uploadGate
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"detail":"No file provided"}`)
			return
		}
		n, _ := io.Copy(io.Discard, file)
		fmt.Fprintf(w, `{"success":true,"file_id":"abc123","filename":%q,"size":%d}`, hdr.Filename, n)
	})
	mux.HandleFunc("POST /api/generate/{id}", func(w http.ResponseWriter, r *http.Request) {
		if f.generateCode != 0 {
			w.WriteHeader(f.generateCode)
			fmt.Fprint(w, `{"detail":"Internal server error"}`)
			return
		}
		fmt.Fprint(w, `{"success":true,"status":"processing"}`)
	})
	mux.HandleFunc("GET /api/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		i := f.statusCalls
		f.statusCalls++
		s := job(types.JobGenerating, 50)
		if i < len(f.statuses) {
			s = f.statuses[i]
		}
		f.mu.Unlock()
		s(w)
	})
	mux.HandleFunc("GET /api/download/{a}/{b}", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.PathValue("b") == "status":
			fmt.Fprint(w, `{"success":true,"files":{"word":true,"pdf":false},"message":"ready"}`)
		case r.PathValue("a") == "word":
			if f.downloadGate != nil {
				<-f.downloadGate
			}
			f.mu.Lock()
			fail := f.wordFailures > 0
			if fail {
				f.wordFailures--
			}
			f.mu.Unlock()
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"detail":"Internal server error"}`)
				return
			}
			w.Header().Set("Content-Disposition", `attachment; filename="minutes_2024.docx"`)
			fmt.Fprint(w, "PK docx")
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"detail":"Generated file not found"}`)
		}
	})
	return mux
}

// memHistory collects session records.
type memHistory struct {
	mu   sync.Mutex
	recs []types.SessionRecord
}

func (h *memHistory) RecordSession(_ context.Context, rec types.SessionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	return nil
}

func (h *memHistory) statuses() []types.SessionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []types.SessionStatus
	for _, r := range h.recs {
		if len(out) == 0 || out[len(out)-1] != r.Status {
			out = append(out, r.Status)
		}
	}
	return out
}

type harness struct {
	o       *Orchestrator
	center  *notify.Center
	svc     *fakeService
	history *memHistory
	outDir  string
}

func newHarness(t *testing.T, svc *fakeService, opts ...Option) *harness {
	t.Helper()
	ts := httptest.NewServer(svc.handler())
	t.Cleanup(ts.Close)

	cfg := types.DefaultClientConfig()
	cfg.Backend.BaseURL = ts.URL
	cfg.Backend.RetryBaseDelay = time.Millisecond
	cfg.Poll.Interval = interval
	cfg.Notify.SuggestionDelay = 100 * time.Millisecond
	cfg.Download.OutputDir = t.TempDir()
	cfg.Download.SuccessRevert = 50 * time.Millisecond
	cfg.Download.ErrorRevert = 80 * time.Millisecond

	center := notify.New(notify.WithAutoDismiss(time.Minute))
	t.Cleanup(center.Close)

	h := &harness{center: center, svc: svc, history: &memHistory{}, outDir: cfg.Download.OutputDir}
	opts = append([]Option{WithNotifier(center), WithHistory(h.history)}, opts...)
	h.o = New(backend.NewClient(cfg.Backend, ts.Client()), cfg, opts...)
	t.Cleanup(h.o.Reset)
	return h
}

func transcript(name string, size int) types.FileHandle {
	content := strings.Repeat("x", size)
	return types.FileHandle{
		Name:      name,
		MediaType: "text/plain",
		Size:      int64(size),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func waitTerminal(t *testing.T, o *Orchestrator) types.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := o.Wait(ctx)
	require.NoError(t, err)
	return s
}

func TestScenario_TranscriptToCompletedMinutes(t *testing.T) {
	svc := &fakeService{statuses: []step{
		job(types.JobExtracting, 10),
		job(types.JobGenerating, 55),
		job(types.JobCompleted, 100),
	}}
	var (
		mu       sync.Mutex
		progress []int
		o        *Orchestrator
	)
	h := newHarness(t, svc, WithOnChange(func() {
		p := o.Snapshot().Progress
		mu.Lock()
		if len(progress) == 0 || progress[len(progress)-1] != p {
			progress = append(progress, p)
		}
		mu.Unlock()
	}))
	o = h.o

	require.NoError(t, o.SelectFile(transcript("standup.txt", 5*1024)))
	assert.Equal(t, types.StatusFileSelected, o.Snapshot().Status)
	require.NoError(t, o.Generate(context.Background()))

	s := waitTerminal(t, o)
	assert.Equal(t, types.StatusCompleted, s.Status)
	assert.Equal(t, "abc123", s.ID)
	assert.Equal(t, 100, s.Progress)

	mu.Lock()
	assert.Equal(t, []int{0, 10, 55, 100}, progress)
	mu.Unlock()

	states := o.Downloads()
	require.Len(t, states, 2)
	assert.Equal(t, download.PhaseIdle, states[0].Phase)
	assert.Equal(t, "word", states[0].Artifact)
	assert.Equal(t, download.PhaseUnavailable, states[1].Phase)

	time.Sleep(5 * interval)
	assert.Equal(t, 3, svc.calls(), "polling stops at completion")
	assert.False(t, o.PollActive())

	path, err := o.Download(context.Background(), "word")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.outDir, "minutes_2024.docx"), path)

	assert.Equal(t, []types.SessionStatus{
		types.StatusFileSelected, types.StatusUploading, types.StatusProcessing, types.StatusCompleted,
	}, h.history.statuses())
	assert.Empty(t, o.Classifier().Log())
}

func TestProgressAppliedVerbatim(t *testing.T) {
	svc := &fakeService{statuses: []step{
		job(types.JobGenerating, 40),
		job(types.JobGenerating, 20),
		job(types.JobCompleted, 100),
	}}
	var (
		mu       sync.Mutex
		progress []int
		o        *Orchestrator
	)
	h := newHarness(t, svc, WithOnChange(func() {
		p := o.Snapshot().Progress
		mu.Lock()
		if len(progress) == 0 || progress[len(progress)-1] != p {
			progress = append(progress, p)
		}
		mu.Unlock()
	}))
	o = h.o

	require.NoError(t, o.SelectFile(transcript("standup.txt", 64)))
	require.NoError(t, o.Generate(context.Background()))
	assert.Equal(t, types.StatusCompleted, waitTerminal(t, o).Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 40, 20, 100}, progress, "a lower report is shown as is")
}

func TestScenario_PDFRejected(t *testing.T) {
	h := newHarness(t, &fakeService{})
	pdf := transcript("notes.pdf", 2048)
	pdf.MediaType = "application/pdf"

	err := h.o.SelectFile(pdf)
	var ve *errclass.ValidationError
	require.ErrorAs(t, err, &ve)

	log := h.o.Classifier().Log()
	require.Len(t, log, 1)
	assert.Equal(t, errclass.KindValidation, log[0].Kind)
	assert.Contains(t, log[0].Message, "unsupported file type")
	assert.Equal(t, types.Session{Status: types.StatusIdle}, h.o.Snapshot())
	assert.Empty(t, h.history.statuses())
}

func TestSelectFile_SizeChecks(t *testing.T) {
	tests := []struct {
		name string
		size int
		want string
	}{
		{"empty", 0, "file is empty"},
		{"too large", 10<<20 + 1, "the limit is 10.0 MB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeService{})
			err := h.o.SelectFile(transcript("standup.txt", tt.size))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, types.StatusIdle, h.o.Snapshot().Status)
			assert.Len(t, h.o.Classifier().Log(), 1)
		})
	}
}

func TestSelectFile_ExactLimitAccepted(t *testing.T) {
	h := newHarness(t, &fakeService{})
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 10<<20)))
}

func TestScenario_GenerateServerError(t *testing.T) {
	h := newHarness(t, &fakeService{generateCode: http.StatusInternalServerError})
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 5*1024)))

	err := h.o.Generate(context.Background())
	var he *backend.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, types.StatusFileSelected, h.o.Snapshot().Status)

	log := h.o.Classifier().Log()
	require.Len(t, log, 1)
	assert.Equal(t, errclass.KindNetwork, log[0].Kind)
	assert.Equal(t, http.StatusInternalServerError, log[0].HTTPStatus)
	assert.Equal(t, errclass.ContextProcessing, log[0].Context)
	assert.Equal(t, errclass.Suggestions(errclass.ContextProcessing), log[0].Suggestions)

	active := h.center.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.KindError, active[0].Kind)
	require.Len(t, active[0].Actions, 2)
	assert.Equal(t, "Retry", active[0].Actions[0].Label)
	assert.Equal(t, "Reset", active[0].Actions[1].Label)

	require.Eventually(t, func() bool { return len(h.center.Active()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, notify.KindInfo, h.center.Active()[1].Kind)
	assert.Equal(t, "Suggestions", h.center.Active()[1].Title)
}

func TestPollFailureThreshold(t *testing.T) {
	svc := &fakeService{statuses: []step{
		httpFail(503), httpFail(503), httpFail(503), job(types.JobCompleted, 100),
	}}
	h := newHarness(t, svc)
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))

	s := waitTerminal(t, h.o)
	assert.Equal(t, types.StatusFailed, s.Status)

	log := h.o.Classifier().Log()
	require.Len(t, log, 3)
	assert.Equal(t, errclass.KindNetwork, log[0].Kind)
	assert.Equal(t, errclass.KindProcessing, log[2].Kind)
	assert.Contains(t, log[2].Detail, "after 3 attempts")

	errorsShown := 0
	for _, n := range h.center.Active() {
		if n.Kind == notify.KindError {
			errorsShown++
		}
	}
	assert.Equal(t, 1, errorsShown, "failures below the threshold are not notified")

	time.Sleep(5 * interval)
	assert.Equal(t, 3, svc.calls())
}

func TestPollFailureStreakResetsOnSuccess(t *testing.T) {
	svc := &fakeService{statuses: []step{
		httpFail(500), httpFail(500), job(types.JobGenerating, 40),
		httpFail(500), httpFail(500), job(types.JobCompleted, 100),
	}}
	h := newHarness(t, svc)
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))

	assert.Equal(t, types.StatusCompleted, waitTerminal(t, h.o).Status)
}

func TestBackendJobFailure(t *testing.T) {
	h := newHarness(t, &fakeService{statuses: []step{job(types.JobGenerating, 20), jobFailed("model timeout")}})
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))

	s := waitTerminal(t, h.o)
	assert.Equal(t, types.StatusFailed, s.Status)
	assert.Equal(t, "abc123", s.ID)

	log := h.o.Classifier().Log()
	require.Len(t, log, 1)
	assert.Equal(t, errclass.KindProcessing, log[0].Kind)
	assert.Equal(t, "Processing failed: model timeout", log[0].Message)
}

func TestReset_IdempotentDuringProcessing(t *testing.T) {
	svc := &fakeService{}
	h := newHarness(t, svc)
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))
	require.Eventually(t, func() bool { return h.o.Snapshot().Progress == 50 }, time.Second, interval)

	waited := make(chan types.Session, 1)
	go func() {
		s, _ := h.o.Wait(context.Background())
		waited <- s
	}()

	h.o.Reset()
	first := h.o.Snapshot()
	h.o.Reset()

	assert.Equal(t, types.Session{Status: types.StatusIdle}, first)
	assert.Equal(t, first, h.o.Snapshot())
	assert.Empty(t, h.o.Downloads())
	assert.False(t, h.o.PollActive())
	assert.Equal(t, types.StatusIdle, (<-waited).Status)

	calls := svc.calls()
	time.Sleep(5 * interval)
	assert.Equal(t, calls, svc.calls())
	assert.Empty(t, h.center.Active())
}

func TestReset_AfterCompletionClearsDownloadsAndNotices(t *testing.T) {
	h := newHarness(t, &fakeService{statuses: []step{job(types.JobCompleted, 100)}})
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))
	require.Equal(t, types.StatusCompleted, waitTerminal(t, h.o).Status)
	require.NotEmpty(t, h.center.Active())

	h.o.Reset()
	assert.Empty(t, h.o.Downloads())
	assert.Empty(t, h.center.Active())

	_, err := h.o.Download(context.Background(), "word")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReset_DiscardsLateUpload(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{uploadGate: gate}
	h := newHarness(t, svc)
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))

	done := make(chan error, 1)
	go func() { done <- h.o.Generate(context.Background()) }()
	require.Eventually(t, func() bool { return h.o.Snapshot().Status == types.StatusUploading }, time.Second, time.Millisecond)

	h.o.Reset()
	close(gate)
	assert.True(t, errors.Is(<-done, ErrStale))
	assert.Equal(t, types.StatusIdle, h.o.Snapshot().Status)
	assert.Zero(t, svc.calls())
	assert.Empty(t, h.o.Classifier().Log())
}

func TestReset_DiscardsLateDownloadFailure(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{
		statuses:     []step{job(types.JobCompleted, 100)},
		downloadGate: gate,
		wordFailures: 1,
	}
	h := newHarness(t, svc)
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 64)))
	require.NoError(t, h.o.Generate(context.Background()))
	require.Equal(t, types.StatusCompleted, waitTerminal(t, h.o).Status)

	done := make(chan error, 1)
	go func() {
		_, err := h.o.Download(context.Background(), types.ArtifactWord)
		done <- err
	}()
	require.Eventually(t, func() bool {
		for _, s := range h.o.Downloads() {
			if s.Artifact == types.ArtifactWord {
				return s.Phase == download.PhaseInFlight
			}
		}
		return false
	}, time.Second, time.Millisecond)

	h.o.Reset()
	require.Empty(t, h.center.Active())
	close(gate)

	err := <-done
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, types.StatusIdle, h.o.Snapshot().Status)
	assert.Empty(t, h.center.Active(), "no notice for a discarded session")
	assert.Empty(t, h.o.Classifier().Log())
}

func TestDownloadRetryAction(t *testing.T) {
	svc := &fakeService{
		statuses:     []step{job(types.JobCompleted, 100)},
		wordFailures: 1,
	}
	h := newHarness(t, svc)
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 64)))
	require.NoError(t, h.o.Generate(context.Background()))
	require.Equal(t, types.StatusCompleted, waitTerminal(t, h.o).Status)

	_, err := h.o.Download(context.Background(), types.ArtifactWord)
	require.Error(t, err)

	var failed notify.Notification
	for _, n := range h.center.Active() {
		if n.Title == "Word download failed" {
			failed = n
		}
	}
	require.NotEmpty(t, failed.ID)
	require.NoError(t, h.center.Invoke(failed.ID, "Retry"))

	require.Eventually(t, func() bool {
		for _, s := range h.o.Downloads() {
			if s.Artifact == types.ArtifactWord {
				return s.Path == filepath.Join(h.outDir, "minutes_2024.docx")
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGuards(t *testing.T) {
	h := newHarness(t, &fakeService{})

	assert.ErrorIs(t, h.o.Generate(context.Background()), ErrIllegalTransition)
	_, err := h.o.Download(context.Background(), "word")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = h.o.Wait(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))
	assert.ErrorIs(t, h.o.Generate(context.Background()), ErrBusy)
	assert.ErrorIs(t, h.o.SelectFile(transcript("other.txt", 100)), ErrBusy)
	assert.Equal(t, types.StatusProcessing, h.o.Snapshot().Status)
}

func TestDownloadRejectsUnavailableArtifact(t *testing.T) {
	h := newHarness(t, &fakeService{statuses: []step{job(types.JobCompleted, 100)}})
	require.NoError(t, h.o.SelectFile(transcript("standup.txt", 100)))
	require.NoError(t, h.o.Generate(context.Background()))
	waitTerminal(t, h.o)

	_, err := h.o.Download(context.Background(), "pdf")
	assert.ErrorIs(t, err, download.ErrUnavailable)
	assert.Empty(t, h.o.Classifier().Log(), "rejected requests have no side effects")

	results, err := h.o.DownloadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "word", results[0].Artifact)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to types.SessionStatus
		want     bool
	}{
		{types.StatusIdle, types.StatusFileSelected, true},
		{types.StatusIdle, types.StatusProcessing, false},
		{types.StatusIdle, types.StatusUploading, false},
		{types.StatusFileSelected, types.StatusUploading, true},
		{types.StatusUploading, types.StatusProcessing, true},
		{types.StatusUploading, types.StatusFileSelected, true},
		{types.StatusUploading, types.StatusCompleted, false},
		{types.StatusProcessing, types.StatusCompleted, true},
		{types.StatusProcessing, types.StatusFailed, true},
		{types.StatusCompleted, types.StatusProcessing, false},
		{types.StatusFailed, types.StatusIdle, true},
		{types.StatusProcessing, types.StatusIdle, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
