// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by every backend call.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout. Zero means the transport default.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "rapid-minutes/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// BackendConfig locates the minutes backend and controls retry behavior
// for idempotent requests.
type BackendConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the backend origin, e.g. "http://localhost:8000".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// MaxRetries bounds 429 retries for availability, health and download
	// requests (default 2). Status polls are never retried.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay is the first backoff step when no Retry-After header
	// is present (default 1s, doubling each attempt).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// UploadConfig holds the pre-flight file checks.
type UploadConfig struct {
	// MaxBytes is the largest accepted transcript (default 10 MiB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`

	// Extension is the accepted file suffix when the media type is not
	// text/plain (default ".txt").
	Extension string `json:"extension" yaml:"extension" mapstructure:"extension"`
}

// PollConfig controls the status polling loop.
type PollConfig struct {
	// Interval is the polling cadence (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// FailureThreshold is the number of consecutive transport failures
	// that fail the session (default 3).
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// DownloadConfig controls artifact retrieval.
type DownloadConfig struct {
	// OutputDir is where downloaded artifacts are written.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Artifacts lists the artifact types offered once a session completes.
	Artifacts []string `json:"artifacts" yaml:"artifacts" mapstructure:"artifacts"`

	// SuccessRevert is how long a completed download stays visible (default 3s).
	SuccessRevert time.Duration `json:"success_revert" yaml:"success_revert" mapstructure:"success_revert"`

	// ErrorRevert is how long a failed download stays visible (default 5s).
	ErrorRevert time.Duration `json:"error_revert" yaml:"error_revert" mapstructure:"error_revert"`
}

// NotifyConfig controls notification timing.
type NotifyConfig struct {
	// AutoDismiss is the lifetime of success/warning/info notifications (default 5s).
	AutoDismiss time.Duration `json:"auto_dismiss" yaml:"auto_dismiss" mapstructure:"auto_dismiss"`

	// SuggestionDelay is the gap between an error notification and its
	// follow-up list of suggested fixes (default 2s).
	SuggestionDelay time.Duration `json:"suggestion_delay" yaml:"suggestion_delay" mapstructure:"suggestion_delay"`
}

// LogConfig selects the zap logger shape.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// File, when set, receives log output instead of stderr.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

// StoreConfig locates the local client state database.
type StoreConfig struct {
	// Dir holds state.db (welcome flag, session history, error archive).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// ClientConfig groups all client settings.
type ClientConfig struct {
	Backend  BackendConfig  `json:"backend" yaml:"backend" mapstructure:"backend"`
	Upload   UploadConfig   `json:"upload" yaml:"upload" mapstructure:"upload"`
	Poll     PollConfig     `json:"poll" yaml:"poll" mapstructure:"poll"`
	Download DownloadConfig `json:"download" yaml:"download" mapstructure:"download"`
	Notify   NotifyConfig   `json:"notify" yaml:"notify" mapstructure:"notify"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
}

// Artifact types offered by the backend.
const (
	ArtifactWord = "word"
	ArtifactPDF  = "pdf"
)

// DefaultClientConfig returns the stock settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Backend: BackendConfig{
			HTTPConfig: HTTPConfig{
				UserAgent: "rapid-minutes/0.1",
			},
			BaseURL:        "http://localhost:8000",
			MaxRetries:     2,
			RetryBaseDelay: time.Second,
		},
		Upload: UploadConfig{
			MaxBytes:  10 << 20,
			Extension: ".txt",
		},
		Poll: PollConfig{
			Interval:         2 * time.Second,
			FailureThreshold: 3,
		},
		Download: DownloadConfig{
			OutputDir:     "minutes",
			Artifacts:     []string{ArtifactWord, ArtifactPDF},
			SuccessRevert: 3 * time.Second,
			ErrorRevert:   5 * time.Second,
		},
		Notify: NotifyConfig{
			AutoDismiss:     5 * time.Second,
			SuggestionDelay: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Dir: ".rapid-minutes",
		},
	}
}

// Validate rejects settings the client cannot run with.
func (c ClientConfig) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %v", c.Poll.Interval)
	}
	if c.Poll.FailureThreshold < 1 {
		return fmt.Errorf("poll.failure_threshold must be at least 1, got %d", c.Poll.FailureThreshold)
	}
	if len(c.Download.Artifacts) == 0 {
		return fmt.Errorf("download.artifacts must list at least one artifact type")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
