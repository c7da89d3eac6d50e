// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	"fmt"
	"strings"

	"github.com/pdiddy/rapid-minutes/internal/download"
	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

const welcomeText = `Welcome to Rapid Minutes.

1. Press f and enter the path of a .txt meeting transcript (10 MB max).
2. Press g to upload it and generate minutes.
3. When processing completes, press w for Word or p for PDF.

Press r at any time to start over. Press any key to continue.`

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render("Rapid Minutes"))
	b.WriteString("\n")

	if m.welcome {
		b.WriteString("\n")
		b.WriteString(welcomeStyle.Render(welcomeText))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(sectionStyle.Render("Session"))
	b.WriteString("\n")
	b.WriteString(m.renderSession())

	if len(m.downloads) > 0 {
		b.WriteString(sectionStyle.Render("Downloads"))
		b.WriteString("\n")
		for _, d := range m.downloads {
			fmt.Fprintf(&b, "  %s %s", labelStyle.Render(fmt.Sprintf("%-5s", d.Artifact)), phaseBadge(d.Phase))
			if d.Pages > 0 {
				b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d pages)", d.Pages)))
			}
			b.WriteString("\n")
		}
		if m.lastPath != "" {
			b.WriteString(dimStyle.Render("  saved " + m.lastPath))
			b.WriteString("\n")
		}
	}

	if m.input.Focused() {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if len(m.notes) > 0 {
		b.WriteString("\n")
		lines := make([]string, len(m.notes))
		for i, n := range m.notes {
			lines[i] = notify.Format(n)
		}
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if m.hint != "" {
		b.WriteString(warnStyle.Render(m.hint))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) renderSession() string {
	var b strings.Builder
	s := m.session

	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("status"), statusBadge(s.Status))
	if s.File != nil {
		fmt.Fprintf(&b, "  %s %s %s\n", labelStyle.Render("file  "), s.File.Name,
			dimStyle.Render(fmt.Sprintf("(%d bytes)", s.File.Size)))
	}
	if s.ID != "" {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("id    "), s.ID)
	}

	switch s.Status {
	case types.StatusUploading, types.StatusProcessing, types.StatusCompleted:
		b.WriteString("  ")
		b.WriteString(m.progress.ViewAs(float64(s.Progress) / 100))
		b.WriteString("\n")
	}
	if s.Message != "" {
		b.WriteString(dimStyle.Render("  " + s.Message))
		b.WriteString("\n")
	}
	return b.String()
}

func statusBadge(s types.SessionStatus) string {
	switch s {
	case types.StatusCompleted:
		return okStyle.Render("✓ " + string(s))
	case types.StatusFailed:
		return errStyle.Render("✗ " + string(s))
	case types.StatusUploading, types.StatusProcessing:
		return warnStyle.Render("… " + string(s))
	default:
		return dimStyle.Render(string(s))
	}
}

func phaseBadge(p download.Phase) string {
	switch p {
	case download.PhaseCompleted:
		return okStyle.Render("✓ saved")
	case download.PhaseError:
		return errStyle.Render("✗ failed")
	case download.PhaseInFlight:
		return warnStyle.Render("… downloading")
	case download.PhaseUnavailable:
		return dimStyle.Render("not available")
	default:
		return labelStyle.Render("ready")
	}
}
