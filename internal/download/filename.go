// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// Extension returns the file suffix for an artifact type. Anything other
// than a Word document is served as PDF.
func Extension(artifact string) string {
	if artifact == types.ArtifactWord {
		return ".docx"
	}
	return ".pdf"
}

// FallbackFilename names an artifact when the response carries no usable
// Content-Disposition, e.g. "meeting_minutes_2025-09-15.docx".
func FallbackFilename(artifact string, now time.Time) string {
	return "meeting_minutes_" + now.Format("2006-01-02") + Extension(artifact)
}

// ParseContentDisposition extracts the filename from a Content-Disposition
// header value.
//
// The value is a disposition type followed by ";"-separated key=value
// parameters. Keys are case-insensitive. Values are either tokens or
// double-quoted strings with backslash escapes. An RFC 5987 "filename*"
// parameter (charset'lang'percent-encoded) wins over a plain "filename".
// ok is false when no non-empty filename is present.
func ParseContentDisposition(header string) (name string, ok bool) {
	var plain, extended string
	for _, param := range splitParams(header) {
		key, value, found := strings.Cut(param, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = unquote(strings.TrimSpace(value))
		switch key {
		case "filename":
			plain = value
		case "filename*":
			extended = decodeExtended(value)
		}
	}
	if extended != "" {
		return extended, true
	}
	return plain, plain != ""
}

// splitParams splits on ";" outside double quotes.
func splitParams(s string) []string {
	var (
		parts   []string
		b       strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ';' && !quoted:
			parts = append(parts, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	return append(parts, b.String())
}

func unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	v = v[1 : len(v)-1]
	var b strings.Builder
	escaped := false
	for _, r := range v {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// decodeExtended decodes charset'lang'value. Unknown encodings yield "".
func decodeExtended(v string) string {
	parts := strings.SplitN(v, "'", 3)
	if len(parts) != 3 {
		return ""
	}
	switch strings.ToLower(parts[0]) {
	case "utf-8", "us-ascii", "iso-8859-1":
	default:
		return ""
	}
	out, err := url.PathUnescape(parts[2])
	if err != nil {
		return ""
	}
	return out
}

// safeName reduces a server-supplied name to a plain base name, or ""
// when nothing usable remains.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}
