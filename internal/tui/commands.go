// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdiddy/rapid-minutes/internal/errclass"
	"github.com/pdiddy/rapid-minutes/internal/session"
)

// Message types
type (
	refreshMsg struct{}

	welcomeMsg struct{ show bool }

	opDoneMsg struct {
		op   string
		path string
		err  error
	}
)

// waitForRefresh blocks until the next change signal.
func waitForRefresh(s Signal) tea.Cmd {
	return func() tea.Msg {
		<-s
		return refreshMsg{}
	}
}

// loadWelcome decides whether the first-run guide is due. A flag that
// cannot be read counts as not shown.
func loadWelcome(flags Flags, key string) tea.Cmd {
	return func() tea.Msg {
		if flags == nil {
			return welcomeMsg{show: true}
		}
		shown, err := flags.Flag(context.Background(), key)
		return welcomeMsg{show: err != nil || !shown}
	}
}

// markWelcome persists the welcome flag once the guide has been displayed.
func markWelcome(flags Flags, key string) tea.Cmd {
	if flags == nil {
		return nil
	}
	return func() tea.Msg {
		err := flags.SetFlag(context.Background(), key, true)
		return opDoneMsg{op: "welcome", err: err}
	}
}

func selectFile(o *session.Orchestrator, path string) tea.Cmd {
	return func() tea.Msg {
		f, err := session.FileFromPath(path)
		if err != nil {
			verr := &errclass.ValidationError{File: path, Problems: []string{err.Error()}}
			o.Classifier().Classify(verr, errclass.ContextValidation, errclass.WithTitle("Cannot open file"))
			return opDoneMsg{op: "select", err: err}
		}
		return opDoneMsg{op: "select", err: o.SelectFile(f)}
	}
}

func generate(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: "generate", err: o.Generate(context.Background())}
	}
}

func downloadArtifact(o *session.Orchestrator, artifact string) tea.Cmd {
	return func() tea.Msg {
		path, err := o.Download(context.Background(), artifact)
		return opDoneMsg{op: "download", path: path, err: err}
	}
}

func downloadAll(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		results, err := o.DownloadAll(context.Background())
		msg := opDoneMsg{op: "download", err: err}
		for _, r := range results {
			if r.Err == nil {
				msg.path = r.Path
			}
		}
		return msg
	}
}

func reset(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		o.Reset()
		return opDoneMsg{op: "reset"}
	}
}

// invoke runs an action handler, which may call back into the
// orchestrator.
func invoke(c invoker, id, label string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: "action", err: c.Invoke(id, label)}
	}
}

type invoker interface {
	Invoke(id, label string) error
}

// userError reports whether err is a rejection the user should see in the
// status line rather than a failure already sent to the notification stack.
func userError(err error) bool {
	return errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrIllegalTransition)
}
