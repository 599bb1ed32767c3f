// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package tui is the interactive front end. It renders state exposed by the
// connection store, the session manager and the transfer engine, and
// dispatches user commands into them; it holds no domain logic of its own.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/ferryman-ssh/ferryman/internal/config"
	"github.com/ferryman-ssh/ferryman/internal/hostkeys"
	"github.com/ferryman-ssh/ferryman/internal/model"
	"github.com/ferryman-ssh/ferryman/internal/session"
	"github.com/ferryman-ssh/ferryman/internal/sshx"
	"github.com/ferryman-ssh/ferryman/internal/store"
	"github.com/ferryman-ssh/ferryman/internal/transfer"
)

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
	modeTrustPrompt
	modeTerminal
	modeWizard
)

// App is the root bubbletea model.
type App struct {
	store   *store.Store
	manager *session.Manager
	engine  *transfer.Engine
	hosts   *hostkeys.Store
	cfg     config.Config
	log     *zap.Logger

	mode   mode
	width  int
	height int

	cursor  int
	records []model.ConnectionRecord

	form     *recordForm
	deleting model.ConnectionRecord

	// trust-on-first-use prompt state
	trustRecord model.ConnectionRecord
	trustHost   string
	trustLine   string

	terms  map[string]*terminalBuffer
	wizard *wizardModel

	status string
	errMsg string
}

// New wires the app over its collaborators. The store must already be
// unlocked.
func New(st *store.Store, mgr *session.Manager, eng *transfer.Engine, hosts *hostkeys.Store, cfg config.Config, log *zap.Logger) *App {
	return &App{
		store:   st,
		manager: mgr,
		engine:  eng,
		hosts:   hosts,
		cfg:     cfg,
		log:     log,
		records: st.List(),
		terms:   make(map[string]*terminalBuffer),
	}
}

type sessionEventMsg struct{ ev session.Event }
type transferEventMsg struct{ ev transfer.Event }

type connectedMsg struct {
	sessionID string
}

type connectFailedMsg struct {
	record model.ConnectionRecord
	err    error
}

type hostKeyFetchedMsg struct {
	record model.ConnectionRecord
	host   string
	line   string
	err    error
}

func listenSessions(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg { return sessionEventMsg{ev: <-ch} }
}

func listenTransfers(ch <-chan transfer.Event) tea.Cmd {
	return func() tea.Msg { return transferEventMsg{ev: <-ch} }
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		listenSessions(a.manager.Events()),
		listenTransfers(a.engine.Events()),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if id := a.manager.ForegroundID(); id != "" {
			cols, rows := a.termSize()
			_ = a.manager.Resize(id, cols, rows)
		}
		return a, nil

	case sessionEventMsg:
		a.handleSessionEvent(msg.ev)
		return a, listenSessions(a.manager.Events())

	case transferEventMsg:
		var cmd tea.Cmd
		if a.wizard != nil {
			cmd = a.wizard.handleEvent(msg.ev)
		}
		if fin, ok := msg.ev.(transfer.Finished); ok {
			a.status = fmt.Sprintf("transfer %s", fin.Outcome)
			if fin.Outcome == transfer.OutcomeFailed && fin.Err != nil {
				a.errMsg = fin.Err.Error()
			}
		}
		return a, tea.Batch(cmd, listenTransfers(a.engine.Events()))

	case connectedMsg:
		a.mode = modeTerminal
		a.status = "connected"
		return a, nil

	case connectFailedMsg:
		if errors.Is(msg.err, sshx.ErrUnknownHostKey) {
			a.trustRecord = msg.record
			return a, a.fetchHostKey(msg.record)
		}
		a.errMsg = shortError(msg.err)
		return a, nil

	case hostKeyFetchedMsg:
		if msg.err != nil {
			a.errMsg = shortError(msg.err)
			return a, nil
		}
		a.trustHost = msg.host
		a.trustLine = msg.line
		a.mode = modeTrustPrompt
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleSessionEvent(ev session.Event) {
	switch ev := ev.(type) {
	case session.TerminalOutput:
		buf, ok := a.terms[ev.SessionID]
		if !ok {
			buf = newTerminalBuffer()
			a.terms[ev.SessionID] = buf
		}
		buf.append(ev.Data)
	case session.StateChanged:
		switch ev.State {
		case session.StateFailed:
			a.errMsg = ev.Reason
			if a.mode == modeTerminal && a.manager.ForegroundID() == "" {
				a.mode = modeList
			}
		case session.StateClosed:
			delete(a.terms, ev.SessionID)
			if len(a.manager.Sessions()) == 0 && a.mode == modeTerminal {
				a.mode = modeList
			}
		}
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case modeList:
		return a.updateList(msg)
	case modeForm:
		return a.updateForm(msg)
	case modeConfirmDelete:
		return a.updateConfirmDelete(msg)
	case modeTrustPrompt:
		return a.updateTrustPrompt(msg)
	case modeTerminal:
		return a.updateTerminal(msg)
	case modeWizard:
		return a.updateWizard(msg)
	}
	return a, nil
}

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.errMsg = ""
	switch {
	case key.Matches(msg, listKeys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, listKeys.Down):
		if a.cursor < len(a.records)-1 {
			a.cursor++
		}
	case key.Matches(msg, listKeys.Connect):
		if rec, ok := a.selected(); ok {
			a.status = "connecting to " + rec.Label()
			return a, a.connect(rec)
		}
	case key.Matches(msg, listKeys.Add):
		a.form = newRecordForm(model.ConnectionRecord{Port: 22})
		a.mode = modeForm
	case key.Matches(msg, listKeys.Edit):
		if rec, ok := a.selected(); ok {
			a.form = newRecordForm(rec)
			a.mode = modeForm
		}
	case key.Matches(msg, listKeys.Delete):
		if rec, ok := a.selected(); ok {
			a.deleting = rec
			a.mode = modeConfirmDelete
		}
	case key.Matches(msg, listKeys.Copy):
		if rec, ok := a.selected(); ok {
			target := fmt.Sprintf("%s@%s", rec.User, rec.Host)
			if err := clipboard.WriteAll(target); err != nil {
				a.errMsg = "clipboard unavailable"
			} else {
				a.status = "copied " + target
			}
		}
	case key.Matches(msg, listKeys.Quit):
		a.manager.CloseAll()
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		if err := a.store.Delete(a.deleting.ID); err != nil {
			a.errMsg = shortError(err)
		} else {
			a.status = "deleted " + a.deleting.Label()
		}
		a.reloadRecords()
		a.mode = modeList
	case "n", "esc":
		a.mode = modeList
	}
	return a, nil
}

func (a *App) updateTrustPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		if err := a.hosts.Trust(a.trustHost, a.trustLine); err != nil {
			a.errMsg = shortError(err)
			a.mode = modeList
			return a, nil
		}
		a.status = "trusted " + a.trustHost
		a.mode = modeList
		rec := a.trustRecord
		return a, a.connect(rec)
	case "n", "esc":
		a.status = "host not trusted"
		a.mode = modeList
	}
	return a, nil
}

func (a *App) updateWizard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.wizard == nil {
		a.mode = modeTerminal
		return a, nil
	}
	done, cmd := a.wizard.handleKey(msg)
	if done {
		a.wizard = nil
		if len(a.manager.Sessions()) > 0 {
			a.mode = modeTerminal
		} else {
			a.mode = modeList
		}
	}
	return a, cmd
}

// connect dials in the background and opens the terminal channel on
// success.
func (a *App) connect(rec model.ConnectionRecord) tea.Cmd {
	cols, rows := a.termSize()
	return func() tea.Msg {
		id, err := a.manager.Connect(rec)
		if err != nil {
			// Nothing was established; drop the failed session from the
			// arena right away.
			_ = a.manager.CloseSession(id)
			return connectFailedMsg{record: rec, err: err}
		}
		if err := a.manager.OpenTerminal(id, cols, rows); err != nil {
			return connectFailedMsg{record: rec, err: err}
		}
		return connectedMsg{sessionID: id}
	}
}

func (a *App) fetchHostKey(rec model.ConnectionRecord) tea.Cmd {
	timeout := a.cfg.ConnectTimeout
	return func() tea.Msg {
		line, err := sshx.FetchHostKey(rec.Host, rec.Port, timeout)
		return hostKeyFetchedMsg{record: rec, host: rec.Host, line: line, err: err}
	}
}

func (a *App) selected() (model.ConnectionRecord, bool) {
	if a.cursor < 0 || a.cursor >= len(a.records) {
		return model.ConnectionRecord{}, false
	}
	return a.records[a.cursor], true
}

func (a *App) reloadRecords() {
	a.records = a.store.List()
	if a.cursor >= len(a.records) {
		a.cursor = len(a.records) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) termSize() (cols, rows int) {
	cols = a.width - 4
	rows = a.height - 5
	if cols < 20 {
		cols = 80
	}
	if rows < 5 {
		rows = 24
	}
	return cols, rows
}

func (a *App) View() string {
	var body string
	switch a.mode {
	case modeList:
		body = a.viewList()
	case modeForm:
		body = a.form.view()
	case modeConfirmDelete:
		body = fmt.Sprintf("Delete %s? (y/n)", selectedStyle.Render(a.deleting.Label()))
	case modeTrustPrompt:
		body = a.viewTrustPrompt()
	case modeTerminal:
		body = a.viewTerminal()
	case modeWizard:
		body = a.wizard.view()
	}

	var footer string
	if a.errMsg != "" {
		footer = errorStyle.Render(a.errMsg)
	} else if a.status != "" {
		footer = statusStyle.Render(a.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("ferryman"),
		body,
		footer,
	)
}

func (a *App) viewList() string {
	if len(a.records) == 0 {
		return dimStyle.Render("no connections yet. press 'a' to add one.")
	}
	var b strings.Builder
	for i, rec := range a.records {
		line := fmt.Sprintf("%-28s %s@%s", rec.Label(), rec.User, rec.Address())
		if !rec.LastUsedAt.IsZero() {
			line += dimStyle.Render("  last " + humanSince(rec.LastUsedAt))
		}
		if n := len(rec.History); n > 0 {
			last := rec.History[n-1]
			if last.OK {
				line += statusStyle.Render(" ✓")
			} else {
				line += errorStyle.Render(" ✗")
			}
		}
		if i == a.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("\nenter connect · a add · e edit · d delete · y copy · q quit"))
	return b.String()
}

func (a *App) viewTrustPrompt() string {
	return fmt.Sprintf(
		"Unknown host key for %s:\n\n  %s\n\nTrust this host? (y/n)",
		selectedStyle.Render(a.trustHost),
		a.trustLine,
	)
}

func humanSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// shortError keeps footer messages to the taxonomy headline; full detail
// goes to the log.
func shortError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, ':'); i > 0 && i < 60 {
		return msg[:i]
	}
	if len(msg) > 80 {
		return msg[:80]
	}
	return msg
}
