// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tui is the interactive terminal front end for one processing
// session at a time.
//
// The model never calls the orchestrator from Update; every operation runs
// as a tea.Cmd. Components signal changes through a Signal, which wakes the
// program with a refresh message without ever blocking the caller.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdiddy/rapid-minutes/internal/download"
	"github.com/pdiddy/rapid-minutes/internal/notify"
	"github.com/pdiddy/rapid-minutes/internal/session"
	"github.com/pdiddy/rapid-minutes/pkg/types"
)

// Signal coalesces change callbacks into at most one pending refresh.
type Signal chan struct{}

// NewSignal returns a ready Signal.
func NewSignal() Signal { return make(Signal, 1) }

// Notify requests a refresh. It never blocks.
func (s Signal) Notify() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// Flags reads and writes the persisted one-time flags.
type Flags interface {
	Flag(ctx context.Context, key string) (bool, error)
	SetFlag(ctx context.Context, key string, on bool) error
}

// Model is the bubbletea model.
type Model struct {
	orch     *session.Orchestrator
	center   *notify.Center
	flags    Flags
	flagKey  string
	signal   Signal
	initPath string

	session   types.Session
	downloads []download.State
	notes     []notify.Notification
	lastPath  string
	hint      string
	welcome   bool
	width     int
	quitting  bool

	input    textinput.Model
	progress progress.Model
	help     help.Model
}

// Config wires a Model.
type Config struct {
	Orchestrator *session.Orchestrator
	Center       *notify.Center
	Signal       Signal

	// Flags persists the welcome flag under FlagKey. Nil shows the guide
	// on every start.
	Flags   Flags
	FlagKey string

	// Path preselects a transcript.
	Path string
}

// NewModel creates a Model.
func NewModel(cfg Config) Model {
	in := textinput.New()
	in.Placeholder = "path/to/transcript.txt"
	in.Prompt = "file: "
	in.CharLimit = 1024
	in.Width = 60

	bar := progress.New(
		progress.WithGradient("#00ffff", "#00ff87"),
		progress.WithWidth(50),
	)

	sig := cfg.Signal
	if sig == nil {
		sig = NewSignal()
	}

	return Model{
		orch:     cfg.Orchestrator,
		center:   cfg.Center,
		flags:    cfg.Flags,
		flagKey:  cfg.FlagKey,
		signal:   sig,
		initPath: cfg.Path,
		session:  cfg.Orchestrator.Snapshot(),
		input:    in,
		progress: bar,
		help:     help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForRefresh(m.signal), loadWelcome(m.flags, m.flagKey)}
	if m.initPath != "" {
		cmds = append(cmds, selectFile(m.orch, m.initPath))
	}
	return tea.Batch(cmds...)
}
