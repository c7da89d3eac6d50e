// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Open     key.Binding
	Generate key.Binding
	Word     key.Binding
	PDF      key.Binding
	All      key.Binding
	Reset    key.Binding
	Action1  key.Binding
	Action2  key.Binding
	Dismiss  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Open:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "choose file")),
	Generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate")),
	Word:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "word")),
	PDF:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pdf")),
	All:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "download all")),
	Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	Action1:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1/2", "notification action")),
	Action2:  key.NewBinding(key.WithKeys("2")),
	Dismiss:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss all")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Generate, k.Word, k.PDF, k.Reset, k.Dismiss, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Open, k.Generate, k.Reset},
		{k.Word, k.PDF, k.All},
		{k.Action1, k.Dismiss},
		{k.Help, k.Quit},
	}
}
