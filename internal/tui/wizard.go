// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"github.com/ferryman-ssh/ferryman/internal/session"
	"github.com/ferryman-ssh/ferryman/internal/sshx"
	"github.com/ferryman-ssh/ferryman/internal/transfer"
)

// wizardModel walks the user through building a transfer job, then shows
// its progress. While the source/target steps browse the remote side, the
// session's SFTP channel is borrowed from the manager and released before
// the engine starts the job.
type wizardModel struct {
	app *App
	wiz *transfer.Wizard

	sessions []session.Info
	cursor   int

	remote          sshx.SftpChannel
	borrowedSession string

	browser *transfer.Browser
	entries []sshx.Entry
	bcursor int

	running  bool
	jobID    string
	bar      progress.Model
	done     int64
	total    int64
	current  string
	finished *transfer.Finished

	errMsg string
}

func newWizardModel(a *App) *wizardModel {
	sessions := make([]session.Info, 0)
	for _, s := range a.manager.Sessions() {
		if s.State == session.StateReady || s.State == session.StateTerminal {
			sessions = append(sessions, s)
		}
	}
	return &wizardModel{
		app:      a,
		wiz:      transfer.NewWizard(),
		sessions: sessions,
		bar:      progress.New(progress.WithDefaultGradient()),
	}
}

// release returns the borrowed browse channel, if any.
func (w *wizardModel) release() {
	if w.remote != nil {
		w.app.manager.EndTransfer(w.borrowedSession)
		w.remote = nil
		w.borrowedSession = ""
	}
}

func (w *wizardModel) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if w.finished != nil {
		return true, nil
	}
	if w.running {
		switch msg.String() {
		case "c":
			w.app.engine.Cancel(w.jobID)
		}
		return false, nil
	}
	if msg.String() == "esc" {
		if w.wiz.Step() == transfer.StepSession {
			w.release()
			return true, nil
		}
		w.stepBack()
		return false, nil
	}

	switch w.wiz.Step() {
	case transfer.StepSession:
		return false, w.keySession(msg)
	case transfer.StepDirection:
		w.keyDirection(msg)
	case transfer.StepSource, transfer.StepTarget:
		w.keyBrowse(msg)
	case transfer.StepConfirm:
		return w.keyConfirm(msg)
	}
	return false, nil
}

func (w *wizardModel) stepBack() {
	step := w.wiz.Step()
	w.wiz.Back()
	if step == transfer.StepDirection {
		// Leaving the session choice gives the channel back.
		w.release()
	}
	if w.wiz.Step() == transfer.StepSource || w.wiz.Step() == transfer.StepTarget {
		w.openBrowser()
	}
}

func (w *wizardModel) keySession(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if w.cursor > 0 {
			w.cursor--
		}
	case "down", "j":
		if w.cursor < len(w.sessions)-1 {
			w.cursor++
		}
	case "enter":
		if w.cursor >= len(w.sessions) {
			return nil
		}
		info := w.sessions[w.cursor]
		remote, err := w.app.manager.BeginTransfer(info.ID)
		if err != nil {
			w.errMsg = shortError(err)
			return nil
		}
		w.remote = remote
		w.borrowedSession = info.ID
		if err := w.wiz.ChooseSession(info.ID); err != nil {
			w.errMsg = shortError(err)
		}
	}
	return nil
}

func (w *wizardModel) keyDirection(msg tea.KeyMsg) {
	var d transfer.Direction
	switch msg.String() {
	case "u":
		d = transfer.DirectionUpload
	case "d":
		d = transfer.DirectionDownload
	default:
		return
	}
	if err := w.wiz.ChooseDirection(d); err != nil {
		w.errMsg = shortError(err)
		return
	}
	w.openBrowser()
}

// browseSide picks which side the current browse step walks: the source
// side for StepSource, the opposite one for StepTarget.
func (w *wizardModel) browseSide() transfer.Side {
	upload := w.wiz.Draft().Direction == transfer.DirectionUpload
	local := transfer.LocalSide(afero.NewOsFs())
	browseLocal := upload == (w.wiz.Step() == transfer.StepSource)
	if browseLocal {
		return local
	}
	return w.remote
}

func (w *wizardModel) openBrowser() {
	start := "/"
	upload := w.wiz.Draft().Direction == transfer.DirectionUpload
	browseLocal := upload == (w.wiz.Step() == transfer.StepSource)
	if browseLocal {
		if dir := w.app.store.LastLocalDir(); dir != "" {
			start = dir
		}
	} else if rec, err := w.app.manager.Record(w.wiz.Draft().SessionID); err == nil && rec.LastRemoteDir != "" {
		start = rec.LastRemoteDir
	}
	w.browser = transfer.NewBrowser(w.browseSide(), start)
	w.refreshEntries()
}

func (w *wizardModel) refreshEntries() {
	entries, err := w.browser.List()
	if err != nil {
		w.errMsg = shortError(err)
		entries = nil
	}
	w.entries = entries
	w.bcursor = 0
}

func (w *wizardModel) keyBrowse(msg tea.KeyMsg) {
	switch msg.String() {
	case "up", "k":
		if w.bcursor > 0 {
			w.bcursor--
		}
	case "down", "j":
		if w.bcursor < len(w.entries)-1 {
			w.bcursor++
		}
	case "backspace", "left", "h":
		w.browser.Up()
		w.refreshEntries()
	case "enter", "right", "l":
		if w.bcursor < len(w.entries) && w.entries[w.bcursor].IsDir {
			if err := w.browser.Enter(w.entries[w.bcursor].Name); err != nil {
				w.errMsg = shortError(err)
				return
			}
			w.refreshEntries()
		}
	case "s", " ":
		w.choose()
	}
}

// choose records the highlighted entry (source step) or the current
// directory (target step) and advances the wizard.
func (w *wizardModel) choose() {
	var err error
	switch w.wiz.Step() {
	case transfer.StepSource:
		if w.bcursor >= len(w.entries) {
			return
		}
		err = w.wiz.ChooseSource(w.entries[w.bcursor].Path)
		if err == nil {
			w.rememberDir(transfer.StepSource, w.browser.Dir())
			w.openBrowser()
		}
	case transfer.StepTarget:
		err = w.wiz.ChooseTarget(w.browser.Dir())
		if err == nil {
			w.rememberDir(transfer.StepTarget, w.browser.Dir())
		}
	}
	if err != nil {
		w.errMsg = shortError(err)
	}
}

// rememberDir persists the last browsed directory so the next wizard run
// starts where this one left off.
func (w *wizardModel) rememberDir(step transfer.Step, dir string) {
	upload := w.wiz.Draft().Direction == transfer.DirectionUpload
	local := upload == (step == transfer.StepSource)
	if local {
		_ = w.app.store.SetLastLocalDir(dir)
		return
	}
	_ = w.app.store.SetLastRemoteDir(w.sessionRecordID(), dir)
}

func (w *wizardModel) sessionRecordID() string {
	rec, err := w.app.manager.Record(w.wiz.Draft().SessionID)
	if err != nil {
		return ""
	}
	return rec.ID
}

func (w *wizardModel) keyConfirm(msg tea.KeyMsg) (bool, tea.Cmd) {
	if msg.String() != "enter" {
		return false, nil
	}
	spec, err := w.wiz.Confirm()
	if err != nil {
		w.errMsg = shortError(err)
		return false, nil
	}
	// The engine borrows the channel itself.
	w.release()
	job, err := w.app.engine.Start(spec)
	if err != nil {
		w.errMsg = shortError(err)
		return false, nil
	}
	w.jobID = job.ID
	w.running = true
	return false, nil
}

func (w *wizardModel) handleEvent(ev transfer.Event) tea.Cmd {
	switch ev := ev.(type) {
	case transfer.Progress:
		if ev.JobID == w.jobID {
			w.done = ev.BytesDone
			w.total = ev.TotalBytes
			w.current = ev.CurrentFile
		}
	case transfer.Finished:
		if ev.JobID == w.jobID {
			fin := ev
			w.finished = &fin
			w.done = ev.BytesDone
		}
	}
	return nil
}

func (w *wizardModel) view() string {
	var b strings.Builder
	b.WriteString(selectedStyle.Render("Transfer") + "\n\n")

	switch {
	case w.finished != nil:
		b.WriteString(fmt.Sprintf("%s · %s transferred\n", w.finished.Outcome, humanBytes(w.done)))
		if w.finished.Err != nil {
			b.WriteString(errorStyle.Render(shortError(w.finished.Err)) + "\n")
		}
		b.WriteString(dimStyle.Render("\npress any key to close"))
	case w.running:
		ratio := 0.0
		if w.total > 0 {
			ratio = float64(w.done) / float64(w.total)
		}
		b.WriteString(w.bar.ViewAs(ratio) + "\n")
		b.WriteString(fmt.Sprintf("%s / %s", humanBytes(w.done), humanBytes(w.total)))
		if w.current != "" {
			b.WriteString(dimStyle.Render("  " + w.current))
		}
		b.WriteString(dimStyle.Render("\n\nc cancel"))
	default:
		b.WriteString(w.viewStep())
	}

	if w.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(w.errMsg))
	}
	return b.String()
}

func (w *wizardModel) viewStep() string {
	var b strings.Builder
	switch w.wiz.Step() {
	case transfer.StepSession:
		b.WriteString("Select session:\n\n")
		if len(w.sessions) == 0 {
			b.WriteString(dimStyle.Render("no sessions available"))
		}
		for i, s := range w.sessions {
			line := s.Label
			if i == w.cursor {
				line = selectedStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
		b.WriteString(dimStyle.Render("\nenter select · esc close"))
	case transfer.StepDirection:
		b.WriteString("Direction:\n\n  u  upload (local → remote)\n  d  download (remote → local)\n")
		b.WriteString(dimStyle.Render("\nesc back"))
	case transfer.StepSource, transfer.StepTarget:
		what := "source file or directory"
		if w.wiz.Step() == transfer.StepTarget {
			what = "target directory"
		}
		b.WriteString(fmt.Sprintf("Select %s in %s:\n\n", what, selectedStyle.Render(w.browser.Dir())))
		for i, e := range w.entries {
			name := e.Name
			if e.IsDir {
				name += "/"
			} else {
				name += dimStyle.Render("  " + humanBytes(e.Size))
			}
			if i == w.bcursor {
				name = selectedStyle.Render("> " + name)
			} else {
				name = "  " + name
			}
			b.WriteString(name + "\n")
		}
		b.WriteString(dimStyle.Render("\nenter descend · backspace up · s select · esc back"))
	case transfer.StepConfirm:
		spec := w.wiz.Draft()
		b.WriteString("Confirm:\n\n")
		b.WriteString(fmt.Sprintf("  %-9s %s\n", "direction", spec.Direction))
		b.WriteString(fmt.Sprintf("  %-9s %s\n", "source", spec.SourcePath))
		b.WriteString(fmt.Sprintf("  %-9s %s\n", "target", spec.TargetDir))
		b.WriteString(dimStyle.Render("\nenter start · esc back"))
	}
	return b.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMG"[exp])
}
