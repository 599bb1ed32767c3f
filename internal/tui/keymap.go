// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import "github.com/charmbracelet/bubbles/key"

type listKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Connect key.Binding
	Add     key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Copy    key.Binding
	Quit    key.Binding
}

var listKeys = listKeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Connect: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
	Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy user@host")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Terminal mode passes almost everything through to the remote shell; only
// these chords stay local.
type terminalKeyMap struct {
	Detach   key.Binding
	NextTab  key.Binding
	Transfer key.Binding
	Close    key.Binding
}

var terminalKeys = terminalKeyMap{
	Detach:   key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("ctrl+q", "detach")),
	NextTab:  key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "next session")),
	Transfer: key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "transfer")),
	Close:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "close session")),
}
