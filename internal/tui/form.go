// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ferryman-ssh/ferryman/internal/model"
)

const (
	fieldName = iota
	fieldHost
	fieldPort
	fieldUser
	fieldKind
	fieldSecret
	fieldKeyPath
	fieldCount
)

// recordForm edits one connection record. The kind field toggles between
// password and private-key auth; the secret field holds the password or the
// key passphrase accordingly. The original record is kept so fields the
// form does not edit (usage history, last-used dirs) survive a save.
type recordForm struct {
	base   model.ConnectionRecord
	kind   model.CredentialKind
	inputs []textinput.Model
	focus  int
}

func newRecordForm(rec model.ConnectionRecord) *recordForm {
	f := &recordForm{
		base:   rec,
		kind:   rec.Credential.Kind,
		inputs: make([]textinput.Model, fieldCount),
	}
	if f.kind == "" {
		f.kind = model.CredentialPassword
	}
	labels := map[int]string{
		fieldName:    "name",
		fieldHost:    "host",
		fieldPort:    "port",
		fieldUser:    "user",
		fieldSecret:  "password",
		fieldKeyPath: "key path",
	}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = labels[i]
		in.CharLimit = 256
		f.inputs[i] = in
	}
	f.inputs[fieldName].SetValue(rec.FriendlyName)
	f.inputs[fieldHost].SetValue(rec.Host)
	if rec.Port > 0 {
		f.inputs[fieldPort].SetValue(strconv.Itoa(rec.Port))
	}
	f.inputs[fieldUser].SetValue(rec.User)
	f.inputs[fieldKeyPath].SetValue(rec.Credential.KeyPath)
	if f.kind == model.CredentialPassword {
		f.inputs[fieldSecret].SetValue(rec.Credential.Password)
	} else {
		f.inputs[fieldSecret].SetValue(rec.Credential.Passphrase)
	}
	f.inputs[fieldSecret].EchoMode = textinput.EchoPassword
	f.inputs[fieldName].Focus()
	return f
}

// record assembles the edited record, or an error when validation fails.
func (f *recordForm) record() (model.ConnectionRecord, error) {
	port := 22
	if v := strings.TrimSpace(f.inputs[fieldPort].Value()); v != "" {
		var err error
		port, err = strconv.Atoi(v)
		if err != nil {
			return model.ConnectionRecord{}, fmt.Errorf("port %q is not a number", v)
		}
	}
	cred := model.Credential{Kind: f.kind}
	if f.kind == model.CredentialPassword {
		cred.Password = f.inputs[fieldSecret].Value()
	} else {
		cred.KeyPath = strings.TrimSpace(f.inputs[fieldKeyPath].Value())
		cred.Passphrase = f.inputs[fieldSecret].Value()
	}
	// Start from the original so usage state (LastUsedAt, History,
	// LastRemoteDir) rides along unchanged; only edited fields move.
	rec := f.base
	rec.FriendlyName = strings.TrimSpace(f.inputs[fieldName].Value())
	rec.Host = strings.TrimSpace(f.inputs[fieldHost].Value())
	rec.Port = port
	rec.User = strings.TrimSpace(f.inputs[fieldUser].Value())
	rec.Credential = cred
	if err := rec.Validate(); err != nil {
		return model.ConnectionRecord{}, err
	}
	return rec, nil
}

func (f *recordForm) next() {
	f.setFocus((f.focus + 1) % fieldCount)
}

func (f *recordForm) prev() {
	f.setFocus((f.focus + fieldCount - 1) % fieldCount)
}

func (f *recordForm) setFocus(i int) {
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = i
	if i != fieldKind {
		f.inputs[i].Focus()
	}
}

func (f *recordForm) toggleKind() {
	if f.kind == model.CredentialPassword {
		f.kind = model.CredentialPrivateKey
		f.inputs[fieldSecret].Placeholder = "passphrase"
	} else {
		f.kind = model.CredentialPassword
		f.inputs[fieldSecret].Placeholder = "password"
	}
}

func (f *recordForm) view() string {
	var b strings.Builder
	title := "New connection"
	if f.base.ID != "" {
		title = "Edit connection"
	}
	b.WriteString(selectedStyle.Render(title) + "\n\n")
	rows := []struct {
		label string
		field int
	}{
		{"Name", fieldName},
		{"Host", fieldHost},
		{"Port", fieldPort},
		{"User", fieldUser},
		{"Auth", fieldKind},
		{"Secret", fieldSecret},
		{"Key path", fieldKeyPath},
	}
	for _, row := range rows {
		cursor := "  "
		if f.focus == row.field {
			cursor = selectedStyle.Render("> ")
		}
		if row.field == fieldKind {
			b.WriteString(fmt.Sprintf("%s%-9s %s\n", cursor, row.label, string(f.kind)))
			continue
		}
		if row.field == fieldKeyPath && f.kind == model.CredentialPassword {
			continue
		}
		b.WriteString(fmt.Sprintf("%s%-9s %s\n", cursor, row.label, f.inputs[row.field].View()))
	}
	b.WriteString(dimStyle.Render("\ntab next · space toggles auth · ctrl+s save · esc cancel"))
	return b.String()
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.form = nil
		a.mode = modeList
		return a, nil
	case "tab", "enter", "down":
		a.form.next()
		return a, nil
	case "shift+tab", "up":
		a.form.prev()
		return a, nil
	case "ctrl+s":
		rec, err := a.form.record()
		if err != nil {
			a.errMsg = shortError(err)
			return a, nil
		}
		if rec.ID == "" {
			_, err = a.store.Add(rec)
		} else {
			err = a.store.Update(rec)
		}
		if err != nil {
			a.errMsg = shortError(err)
			return a, nil
		}
		a.status = "saved " + rec.Label()
		a.form = nil
		a.reloadRecords()
		a.mode = modeList
		return a, nil
	case " ":
		if a.form.focus == fieldKind {
			a.form.toggleKind()
			return a, nil
		}
	}
	if a.form.focus != fieldKind {
		var cmd tea.Cmd
		a.form.inputs[a.form.focus], cmd = a.form.inputs[a.form.focus].Update(msg)
		return a, cmd
	}
	return a, nil
}
