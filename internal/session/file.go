// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// FileFromPath describes a local transcript. The media type is guessed
// from the extension.
func FileFromPath(path string) (types.FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.FileHandle{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return types.FileHandle{}, fmt.Errorf("%s is a directory", path)
	}
	return types.FileHandle{
		Name:      filepath.Base(path),
		MediaType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Size:      info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// CheckFile returns every reason the file cannot be uploaded, nil when it
// is acceptable. A file passes the type check when its media type is
// text/plain or its name carries the configured extension.
func CheckFile(f types.FileHandle, cfg types.UploadConfig) []string {
	var problems []string

	ext := cfg.Extension
	if ext == "" {
		ext = ".txt"
	}
	mediaType, _, _ := mime.ParseMediaType(f.MediaType)
	if mediaType != "text/plain" && !strings.HasSuffix(strings.ToLower(f.Name), strings.ToLower(ext)) {
		problems = append(problems, fmt.Sprintf("unsupported file type, only %s transcripts are accepted", ext))
	}

	switch {
	case f.Size == 0:
		problems = append(problems, "file is empty")
	case cfg.MaxBytes > 0 && f.Size > cfg.MaxBytes:
		problems = append(problems, fmt.Sprintf("file is %s, the limit is %s", formatBytes(f.Size), formatBytes(cfg.MaxBytes)))
	}
	return problems
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
