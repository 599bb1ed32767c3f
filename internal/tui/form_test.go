// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"testing"
	"time"

	"github.com/ferryman-ssh/ferryman/internal/model"
)

func TestFormEditPreservesUsageState(t *testing.T) {
	lastUsed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	orig := model.ConnectionRecord{
		ID:           "rec-1",
		Host:         "alpha.example.com",
		Port:         22,
		User:         "deck",
		FriendlyName: "alpha",
		Credential:   model.Credential{Kind: model.CredentialPassword, Password: "pw"},
		LastUsedAt:   lastUsed,
		History: []model.HistoryEntry{
			{At: lastUsed, OK: true},
		},
		LastRemoteDir: "/srv",
	}

	f := newRecordForm(orig)
	f.inputs[fieldName].SetValue("alpha renamed")

	got, err := f.record()
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if got.FriendlyName != "alpha renamed" {
		t.Errorf("edited name not applied: %q", got.FriendlyName)
	}
	if got.ID != "rec-1" {
		t.Errorf("id changed: %q", got.ID)
	}
	if !got.LastUsedAt.Equal(lastUsed) {
		t.Errorf("LastUsedAt = %v, want %v", got.LastUsedAt, lastUsed)
	}
	if len(got.History) != 1 || !got.History[0].OK {
		t.Errorf("history not preserved: %+v", got.History)
	}
	if got.LastRemoteDir != "/srv" {
		t.Errorf("LastRemoteDir = %q, want /srv", got.LastRemoteDir)
	}
}

func TestFormRoundTripsCredential(t *testing.T) {
	orig := model.ConnectionRecord{
		ID:   "rec-2",
		Host: "beta.example.com",
		Port: 2222,
		User: "deck",
		Credential: model.Credential{
			Kind:       model.CredentialPrivateKey,
			KeyPath:    "~/.ssh/id_ed25519",
			Passphrase: "sesame",
		},
	}
	f := newRecordForm(orig)
	got, err := f.record()
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if got.Credential != orig.Credential {
		t.Errorf("credential = %+v, want %+v", got.Credential, orig.Credential)
	}
	if got.Port != 2222 {
		t.Errorf("port = %d", got.Port)
	}
}

func TestFormValidationRejectsBadPort(t *testing.T) {
	f := newRecordForm(model.ConnectionRecord{
		Host:       "host",
		User:       "deck",
		Credential: model.Credential{Kind: model.CredentialPassword, Password: "pw"},
	})
	f.inputs[fieldPort].SetValue("not-a-port")
	if _, err := f.record(); err == nil {
		t.Error("non-numeric port accepted")
	}
}
