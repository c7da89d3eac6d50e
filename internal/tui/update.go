// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		if w := msg.Width - 10; w > 10 && w < 60 {
			m.progress.Width = w
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case refreshMsg:
		return m.sync(), waitForRefresh(m.signal)
	case welcomeMsg:
		if !msg.show {
			return m, nil
		}
		m.welcome = true
		return m, markWelcome(m.flags, m.flagKey)
	case opDoneMsg:
		return m.handleDone(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		return m.handleInput(msg)
	}
	if m.welcome && !key.Matches(msg, keys.Quit) {
		m.welcome = false
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Open):
		m.hint = ""
		return m, m.input.Focus()
	case key.Matches(msg, keys.Generate):
		return m, generate(m.orch)
	case key.Matches(msg, keys.Word):
		return m, downloadArtifact(m.orch, types.ArtifactWord)
	case key.Matches(msg, keys.PDF):
		return m, downloadArtifact(m.orch, types.ArtifactPDF)
	case key.Matches(msg, keys.All):
		return m, downloadAll(m.orch)
	case key.Matches(msg, keys.Reset):
		m.hint = ""
		m.lastPath = ""
		return m, reset(m.orch)
	case key.Matches(msg, keys.Action1):
		return m, m.invokeAction(0)
	case key.Matches(msg, keys.Action2):
		return m, m.invokeAction(1)
	case key.Matches(msg, keys.Dismiss):
		if m.center != nil {
			m.center.DismissAll()
		}
		m.notes = nil
		return m, nil
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.input.Reset()
		if path == "" {
			return m, nil
		}
		return m, selectFile(m.orch, path)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// invokeAction runs action idx of the newest notification that has one.
func (m Model) invokeAction(idx int) tea.Cmd {
	n, ok := actionable(m.notes)
	if !ok || idx >= len(n.Actions) || m.center == nil {
		return nil
	}
	return invoke(m.center, n.ID, n.Actions[idx].Label)
}

func actionable(notes []notify.Notification) (notify.Notification, bool) {
	for i := len(notes) - 1; i >= 0; i-- {
		if len(notes[i].Actions) > 0 {
			return notes[i], true
		}
	}
	return notify.Notification{}, false
}

func (m Model) handleDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err != nil && userError(msg.err):
		m.hint = msg.err.Error()
	case msg.op == "download" && msg.path != "":
		m.lastPath = msg.path
		m.hint = ""
	case msg.err == nil:
		m.hint = ""
	}
	return m.sync(), nil
}

// sync copies component state into the model.
func (m Model) sync() Model {
	m.session = m.orch.Snapshot()
	m.downloads = m.orch.Downloads()
	if m.center != nil {
		m.notes = m.center.Active()
	}
	if m.session.Status == types.StatusIdle {
		m.lastPath = ""
	}
	return m
}
