// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package errclass maps raw failures to a structured error taxonomy with
// human-readable remediation text.
//
// Build is the pure mapping. A Classifier wraps it with the side effects
// every failure gets: a bounded in-memory log, an optional archive, a log
// line, and a notification with a delayed list of suggested fixes.
package errclass

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/rapid-minutes/internal/backend"
)

// Kind is the error taxonomy.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindProcessing Kind = "processing"
	KindDownload   Kind = "download"
	KindUnknown    Kind = "unknown"
)

// Context names the operation that failed.
type Context string

const (
	ContextUpload     Context = "upload"
	ContextProcessing Context = "processing"
	ContextDownload   Context = "download"
	ContextValidation Context = "validation"
	ContextUnknown    Context = "unknown"
)

// ErrPollThreshold marks a session abandoned after repeated status poll
// failures.
var ErrPollThreshold = errors.New("status polling failed repeatedly")

// ErrJobFailed is matched by every *JobFailedError.
var ErrJobFailed = errors.New("processing job failed")

// JobFailedError is a failure reported by the backend job itself.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	if e.Reason == "" {
		return ErrJobFailed.Error()
	}
	return ErrJobFailed.Error() + ": " + e.Reason
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// ValidationError lists every problem found by one pre-flight check.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e.File == "" {
		return strings.Join(e.Problems, "; ")
	}
	return fmt.Sprintf("%s: %s", e.File, strings.Join(e.Problems, "; "))
}

// Report is the structured view of one failure. Reports are never
// mutated after Build returns them.
type Report struct {
	Kind Kind `json:"kind" yaml:"kind"`
	// HTTPStatus is zero when no HTTP response was received.
	HTTPStatus  int       `json:"http_status,omitempty" yaml:"http_status,omitempty"`
	Message     string    `json:"message" yaml:"message"`
	Suggestions []string  `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Context     Context   `json:"context" yaml:"context"`
	// Detail is the raw error text.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

var suggestionSets = map[Context][]string{
	ContextUpload: {
		"Check that the file is smaller than 10 MB.",
		"Check that the file is a plain-text (.txt) transcript.",
		"Check that the file is not empty.",
	},
	ContextProcessing: {
		"Generation may have timed out; try again in a moment.",
		"The language model may be unavailable; run `minutes health`.",
		"The transcript may be hard to parse; check speaker lines and formatting.",
	},
	ContextDownload: {
		"Try the download again.",
		"If it keeps failing, reset and generate the minutes again.",
	},
}

// Suggestions returns the fixed suggestion list for ctx, nil if it has none.
func Suggestions(ctx Context) []string {
	set := suggestionSets[ctx]
	if set == nil {
		return nil
	}
	return append([]string(nil), set...)
}

// Build classifies raw in the given context. It has no side effects.
func Build(raw error, ctx Context, now time.Time) Report {
	r := Report{
		Context:     ctx,
		Timestamp:   now,
		Suggestions: Suggestions(ctx),
	}
	if raw != nil {
		r.Detail = raw.Error()
	}

	var (
		ve *ValidationError
		jf *JobFailedError
		he *backend.HTTPError
	)
	switch {
	case errors.As(raw, &ve):
		r.Kind = KindValidation
		r.Message = "Invalid file: " + strings.Join(ve.Problems, "; ") + "."
	case errors.As(raw, &jf):
		r.Kind = KindProcessing
		r.Message = "Processing failed."
		if jf.Reason != "" {
			r.Message = "Processing failed: " + jf.Reason
		}
	case errors.Is(raw, ErrPollThreshold):
		r.Kind = KindProcessing
		r.Message = "Lost contact with the processing job after repeated status failures."
	case errors.As(raw, &he):
		r.HTTPStatus = he.StatusCode
		r.Kind, r.Message = classifyStatus(he.StatusCode)
	case isConnectionError(raw):
		r.Kind = KindNetwork
		r.Message = "Unable to reach the server."
	default:
		r.Kind = KindUnknown
		r.Message = "An unexpected error occurred."
	}

	if ctx == ContextDownload {
		r.Kind = KindDownload
	}
	return r
}

// classifyStatus maps an HTTP status code to a kind and message.
func classifyStatus(code int) (Kind, string) {
	switch code {
	case http.StatusBadRequest:
		return KindValidation, "Malformed request."
	case http.StatusUnauthorized:
		return KindNetwork, "Authentication required."
	case http.StatusForbidden:
		return KindNetwork, "Access denied."
	case http.StatusNotFound:
		return KindNetwork, "Resource not found."
	case http.StatusRequestEntityTooLarge:
		return KindValidation, "File exceeds the size limit."
	case http.StatusTooManyRequests:
		return KindNetwork, "Rate limited, retry later."
	case http.StatusInternalServerError:
		return KindNetwork, "Server error, retry later."
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindNetwork, "Service unavailable."
	default:
		return KindNetwork, fmt.Sprintf("Request failed with HTTP %d.", code)
	}
}

// isConnectionError reports failures where no HTTP response arrived.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
