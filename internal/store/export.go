// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rapid-minutes/internal/errclass"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// History is the exported view of the store.
type History struct {
	Sessions []types.SessionRecord `json:"sessions" yaml:"sessions"`
	Errors   []errclass.Report     `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ExportOptions selects what Export writes.
type ExportOptions struct {
	Format        string
	Limit         int
	IncludeErrors bool
}

// Export writes session history, and optionally the error archive, to w.
func (s *Store) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	var (
		h   History
		err error
	)
	h.Sessions, err = s.Sessions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if opts.IncludeErrors {
		h.Errors, err = s.Reports(ctx, ReportFilter{Limit: opts.Limit})
		if err != nil {
			return err
		}
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(h); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
	case FormatYAML, "":
		data, err := yaml.Marshal(h)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format %q", opts.Format)
	}
	return nil
}
