// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// terminalBuffer keeps the tail of a session's raw output. Bytes are shown
// as received; escape-code interpretation is left to the hosting terminal.
type terminalBuffer struct {
	data []byte
}

const terminalBufferCap = 64 * 1024

func newTerminalBuffer() *terminalBuffer {
	return &terminalBuffer{}
}

func (b *terminalBuffer) append(p []byte) {
	b.data = append(b.data, p...)
	if len(b.data) > terminalBufferCap {
		b.data = b.data[len(b.data)-terminalBufferCap:]
	}
}

func (b *terminalBuffer) tail(lines int) string {
	s := string(b.data)
	parts := strings.Split(s, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}

// keyToBytes translates a bubbletea key press into the byte sequence the
// remote shell expects.
func keyToBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte{' '}
	case tea.KeyEnter:
		return []byte{'\r'}
	case tea.KeyBackspace:
		return []byte{0x7f}
	case tea.KeyTab:
		return []byte{'\t'}
	case tea.KeyEsc:
		return []byte{0x1b}
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	case tea.KeyHome:
		return []byte("\x1b[H")
	case tea.KeyEnd:
		return []byte("\x1b[F")
	case tea.KeyDelete:
		return []byte("\x1b[3~")
	case tea.KeyPgUp:
		return []byte("\x1b[5~")
	case tea.KeyPgDown:
		return []byte("\x1b[6~")
	case tea.KeyCtrlA:
		return []byte{0x01}
	case tea.KeyCtrlC:
		return []byte{0x03}
	case tea.KeyCtrlD:
		return []byte{0x04}
	case tea.KeyCtrlE:
		return []byte{0x05}
	case tea.KeyCtrlK:
		return []byte{0x0b}
	case tea.KeyCtrlL:
		return []byte{0x0c}
	case tea.KeyCtrlR:
		return []byte{0x12}
	case tea.KeyCtrlU:
		return []byte{0x15}
	case tea.KeyCtrlW:
		return []byte{0x17}
	case tea.KeyCtrlZ:
		return []byte{0x1a}
	}
	return nil
}

func (a *App) updateTerminal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, terminalKeys.Detach):
		a.mode = modeList
		a.reloadRecords()
		return a, nil
	case key.Matches(msg, terminalKeys.NextTab):
		a.focusNextSession()
		return a, nil
	case key.Matches(msg, terminalKeys.Transfer):
		a.wizard = newWizardModel(a)
		a.mode = modeWizard
		return a, nil
	case key.Matches(msg, terminalKeys.Close):
		id := a.manager.ForegroundID()
		if id == "" {
			return a, nil
		}
		// Closing cancels any running transfer first and may block on it;
		// run it off the interactive path.
		return a, func() tea.Msg {
			_ = a.manager.CloseSession(id)
			return nil
		}
	}
	if data := keyToBytes(msg); data != nil {
		if err := a.manager.RouteKeystrokes(data); err != nil {
			a.errMsg = shortError(err)
		}
	}
	return a, nil
}

func (a *App) focusNextSession() {
	sessions := a.manager.Sessions()
	if len(sessions) == 0 {
		return
	}
	current := a.manager.ForegroundID()
	next := sessions[0].ID
	for i, s := range sessions {
		if s.ID == current {
			next = sessions[(i+1)%len(sessions)].ID
			break
		}
	}
	_ = a.manager.SetForeground(next)
	cols, rows := a.termSize()
	_ = a.manager.Resize(next, cols, rows)
}

func (a *App) viewTerminal() string {
	sessions := a.manager.Sessions()
	if len(sessions) == 0 {
		return dimStyle.Render("no open sessions")
	}
	foreground := a.manager.ForegroundID()

	tabs := make([]string, 0, len(sessions))
	for _, s := range sessions {
		label := s.Label
		if s.State != 0 {
			label += " · " + s.State.String()
		}
		if s.ID == foreground {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var body string
	if buf, ok := a.terms[foreground]; ok {
		_, rows := a.termSize()
		body = buf.tail(rows)
	} else {
		body = dimStyle.Render("waiting for output...")
	}
	pane := paneStyle.Width(max(a.width-2, 20)).Render(body)

	help := dimStyle.Render("ctrl+q detach · ctrl+t next session · ctrl+f transfer · ctrl+x close")
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, pane, help)
}
