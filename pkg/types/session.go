// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"io"
	"time"
)

// SessionStatus is the lifecycle state of one processing session.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusFileSelected SessionStatus = "file_selected"
	StatusUploading    SessionStatus = "uploading"
	StatusProcessing   SessionStatus = "processing"
	StatusCompleted    SessionStatus = "completed"
	StatusFailed       SessionStatus = "failed"
)

// Terminal reports whether no further automatic transitions happen from s.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileHandle describes a transcript chosen by the user. Open is called
// once per upload attempt.
type FileHandle struct {
	// Name is the base file name, e.g. "standup.txt".
	Name string `json:"name" yaml:"name"`

	// MediaType is the declared media type, e.g. "text/plain; charset=utf-8".
	MediaType string `json:"media_type" yaml:"media_type"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// Open returns the file content.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
}

// Session is the record tracking one upload-to-download attempt.
type Session struct {
	// ID is the backend file_id. Set no later than the move to processing,
	// cleared exactly when the session returns to idle.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// File is the selected transcript, nil when idle.
	File *FileHandle `json:"file,omitempty" yaml:"file,omitempty"`

	Status   SessionStatus `json:"status" yaml:"status"`
	Progress int           `json:"progress" yaml:"progress"`
	Message  string        `json:"message" yaml:"message"`
}

// Backend job states reported by the status endpoint.
const (
	JobUploading  = "uploading"
	JobExtracting = "extracting"
	JobGenerating = "generating"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// JobStatus is the canonical view of a backend job. The status endpoint
// fills Status, Progress, Message and Error; the availability endpoint
// fills Artifacts and Message.
type JobStatus struct {
	FileID   string `json:"file_id" yaml:"file_id"`
	Status   string `json:"status" yaml:"status"`
	Progress int    `json:"progress" yaml:"progress"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`

	// Artifacts maps artifact type ("word", "pdf") to whether it exists.
	Artifacts map[string]bool `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// Completed reports whether the job finished successfully.
func (j JobStatus) Completed() bool { return j.Status == JobCompleted }

// Failed reports whether the backend gave up on the job.
func (j JobStatus) Failed() bool { return j.Status == JobFailed }

// SessionRecord is the history entry persisted for each session.
type SessionRecord struct {
	// Key is a client-side identifier, stable across the session's life.
	Key       string        `json:"key" yaml:"key"`
	FileID    string        `json:"file_id,omitempty" yaml:"file_id,omitempty"`
	FileName  string        `json:"file_name" yaml:"file_name"`
	Status    SessionStatus `json:"status" yaml:"status"`
	Progress  int           `json:"progress" yaml:"progress"`
	Message   string        `json:"message,omitempty" yaml:"message,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}
