// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	actionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Badge returns the styled marker for a kind.
func Badge(k Kind) string {
	switch k {
	case KindSuccess:
		return successStyle.Render("✓")
	case KindError:
		return errorStyle.Render("✗")
	case KindWarning:
		return warningStyle.Render("⚠")
	default:
		return infoStyle.Render("ℹ")
	}
}

// Format renders a notification as a single line, with its message
// lines indented underneath.
func Format(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", Badge(n.Kind), n.Title)
	if len(n.Actions) > 0 {
		labels := make([]string, len(n.Actions))
		for i, a := range n.Actions {
			labels[i] = "[" + a.Label + "]"
		}
		b.WriteString(" ")
		b.WriteString(actionStyle.Render(strings.Join(labels, " ")))
	}
	for _, line := range strings.Split(n.Message, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("\n  ")
		b.WriteString(line)
	}
	return b.String()
}

// TextRenderer prints notifications to a writer as they appear. Dismissals
// are silent; a terminal log has nothing to take back.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextRenderer returns a renderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

// Show prints n.
func (r *TextRenderer) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, Format(n))
}

// Dismiss is a no-op.
func (r *TextRenderer) Dismiss(string) {}
