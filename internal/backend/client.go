// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend is the HTTP client for the meeting-minutes service.
//
// The service accepts a transcript upload, runs generation as a background
// job, reports job progress, and serves the generated artifacts. Every call
// returns a *HTTPError for non-2xx responses so callers can classify by
// status code.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/rapid-minutes/internal/httputil"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// ErrInvalidFileID is returned before any request is made when a file id
// does not look like one the backend issues.
var ErrInvalidFileID = errors.New("invalid file id")

// fileIDPattern matches backend ids such as "20250915_125006_114_12cc2028".
var fileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidFileID reports whether id has the backend's file id shape.
func ValidFileID(id string) bool {
	return fileIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

// HTTPError describes a non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	// Detail is the backend's error text, when it sent one.
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// UploadResult is the upload endpoint's answer.
type UploadResult struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
}

// Artifact is a downloadable response. The caller closes Body.
type Artifact struct {
	Type        string
	ContentType string
	// Disposition is the raw Content-Disposition header, possibly empty.
	Disposition string
	Body        io.ReadCloser
}

// Health is the backend liveness report.
type Health struct {
	Status string `json:"status"`
	Ollama string `json:"ollama,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Client talks to the backend.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	retry     httputil.Policy
}

// NewClient builds a client from cfg. A nil httpClient gets one with
// cfg.Timeout.
func NewClient(cfg types.BackendConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      httpClient,
		userAgent: cfg.UserAgent,
		retry: httputil.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
		},
	}
}

// Upload sends the transcript as multipart field "file".
func (c *Client) Upload(ctx context.Context, file types.FileHandle) (UploadResult, error) {
	if file.Open == nil {
		return UploadResult{}, fmt.Errorf("file %s has no content", file.Name)
	}
	src, err := file.Open()
	if err != nil {
		return UploadResult{}, fmt.Errorf("opening %s: %w", file.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer src.Close()
		part, err := mw.CreateFormFile("file", file.Name)
		if err == nil {
			_, err = io.Copy(part, src)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload", pr)
	if err != nil {
		pr.Close()
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := c.doJSON(req, &result); err != nil {
		return UploadResult{}, err
	}
	if result.FileID == "" {
		return UploadResult{}, fmt.Errorf("upload response has no file_id")
	}
	return result, nil
}

// Generate asks the backend to start processing fileID.
func (c *Client) Generate(ctx context.Context, fileID string) error {
	if !ValidFileID(fileID) {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/generate/"+url.PathEscape(fileID), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// statusResponse is the status endpoint payload.
type statusResponse struct {
	FileID   string  `json:"file_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Error    *string `json:"error"`
}

// Status fetches job progress. It is never retried: the poller owns the
// failure policy.
func (c *Client) Status(ctx context.Context, fileID string) (types.JobStatus, error) {
	if !ValidFileID(fileID) {
		return types.JobStatus{}, fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/status/"+url.PathEscape(fileID), nil)
	if err != nil {
		return types.JobStatus{}, err
	}

	var sr statusResponse
	if err := c.doJSON(req, &sr); err != nil {
		return types.JobStatus{}, err
	}

	st := types.JobStatus{
		FileID:   sr.FileID,
		Status:   sr.Status,
		Progress: clampProgress(sr.Progress),
		Message:  sr.Message,
	}
	if st.FileID == "" {
		st.FileID = fileID
	}
	if sr.Error != nil {
		st.Error = *sr.Error
	}
	return st, nil
}

// availabilityResponse is the download-status endpoint payload.
type availabilityResponse struct {
	Success bool            `json:"success"`
	Files   map[string]bool `json:"files"`
	Message string          `json:"message"`
}

// Availability reports which artifacts exist for fileID, in the same
// JobStatus shape the status endpoint uses.
func (c *Client) Availability(ctx context.Context, fileID string) (types.JobStatus, error) {
	if !ValidFileID(fileID) {
		return types.JobStatus{}, fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/download/"+url.PathEscape(fileID)+"/status", nil)
	if err != nil {
		return types.JobStatus{}, err
	}
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.retry)
	if err != nil {
		return types.JobStatus{}, fmt.Errorf("availability request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return types.JobStatus{}, err
	}

	var ar availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return types.JobStatus{}, fmt.Errorf("parsing availability response: %w", err)
	}
	if !ar.Success {
		return types.JobStatus{}, fmt.Errorf("availability check for %s: %s", fileID, ar.Message)
	}

	artifacts := make(map[string]bool, len(ar.Files))
	for k, v := range ar.Files {
		artifacts[k] = v
	}
	return types.JobStatus{FileID: fileID, Message: ar.Message, Artifacts: artifacts}, nil
}

// Download opens the artifact of the given type. The caller must close
// the returned Body.
func (c *Client) Download(ctx context.Context, fileID, artifactType string) (*Artifact, error) {
	if !ValidFileID(fileID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	path := "/api/download/" + url.PathEscape(artifactType) + "/" + url.PathEscape(fileID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	if err := checkStatus(req, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &Artifact{
		Type:        artifactType,
		ContentType: resp.Header.Get("Content-Type"),
		Disposition: resp.Header.Get("Content-Disposition"),
		Body:        resp.Body,
	}, nil
}

// Health probes /api/health and falls back to /health when the API route
// is missing.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h, err := c.health(ctx, "/api/health")
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
		return c.health(ctx, "/health")
	}
	return h, err
}

func (c *Client) health(ctx context.Context, path string) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.retry)
	if err != nil {
		return Health{}, fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return Health{}, err
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("parsing health response: %w", err)
	}
	return h, nil
}

// Delete asks the backend to drop fileID and its outputs.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	if !ValidFileID(fileID) {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/file/"+url.PathEscape(fileID), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON sends req once and decodes a JSON body into out when out is
// non-nil.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing %s response: %w", req.URL.Path, err)
	}
	return nil
}

// checkStatus turns a non-2xx response into an *HTTPError, reading the
// FastAPI-style {"detail": "..."} body when present.
func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	he := &HTTPError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		URL:        req.URL.Path,
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil && body.Detail != "" {
		he.Detail = body.Detail
	} else {
		he.Detail = strings.TrimSpace(string(data))
	}
	return he
}

func clampProgress(p float64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}
