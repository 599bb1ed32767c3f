// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"testing"
	"time"
)

func validRecord() ConnectionRecord {
	return ConnectionRecord{
		ID:   NewRecordID(),
		Host: "example.com",
		Port: 22,
		User: "alice",
		Credential: Credential{
			Kind:     CredentialPassword,
			Password: "hunter2",
		},
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectionRecord)
		wantErr bool
	}{
		{"valid password record", func(r *ConnectionRecord) {}, false},
		{"valid key record", func(r *ConnectionRecord) {
			r.Credential = Credential{Kind: CredentialPrivateKey, KeyPath: "~/.ssh/id_ed25519"}
		}, false},
		{"empty host", func(r *ConnectionRecord) { r.Host = "  " }, true},
		{"port zero", func(r *ConnectionRecord) { r.Port = 0 }, true},
		{"port too large", func(r *ConnectionRecord) { r.Port = 70000 }, true},
		{"empty user", func(r *ConnectionRecord) { r.User = "" }, true},
		{"password credential without password", func(r *ConnectionRecord) {
			r.Credential = Credential{Kind: CredentialPassword}
		}, true},
		{"key credential without path", func(r *ConnectionRecord) {
			r.Credential = Credential{Kind: CredentialPrivateKey}
		}, true},
		{"unknown credential kind", func(r *ConnectionRecord) {
			r.Credential = Credential{Kind: "totp"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLabelPrefersFriendlyName(t *testing.T) {
	r := validRecord()
	if got := r.Label(); got != "alice@example.com" {
		t.Errorf("Label() = %q, want user@host", got)
	}
	r.FriendlyName = "prod web"
	if got := r.Label(); got != "prod web" {
		t.Errorf("Label() = %q, want friendly name", got)
	}
}

func TestAddress(t *testing.T) {
	r := validRecord()
	r.Port = 2222
	if got := r.Address(); got != "example.com:2222" {
		t.Errorf("Address() = %q", got)
	}
}

func TestRecordAttempt(t *testing.T) {
	r := validRecord()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r.RecordAttempt(base, false)
	if !r.LastUsedAt.IsZero() {
		t.Error("failed attempt must not bump LastUsedAt")
	}
	if len(r.History) != 1 || r.History[0].OK {
		t.Errorf("unexpected history after failure: %+v", r.History)
	}

	r.RecordAttempt(base.Add(time.Minute), true)
	if !r.LastUsedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("LastUsedAt = %v, want successful attempt time", r.LastUsedAt)
	}

	// History is bounded.
	for i := 0; i < MaxHistoryEntries*2; i++ {
		r.RecordAttempt(base.Add(time.Duration(i)*time.Hour), true)
	}
	if len(r.History) != MaxHistoryEntries {
		t.Errorf("history length = %d, want cap %d", len(r.History), MaxHistoryEntries)
	}
}

func TestSortByRecency(t *testing.T) {
	now := time.Now()
	a := validRecord()
	a.FriendlyName = "a"
	b := validRecord()
	b.FriendlyName = "b"
	c := validRecord()
	c.FriendlyName = "c"

	a.LastUsedAt = now.Add(-time.Hour)
	b.LastUsedAt = now
	// c never used.

	records := []ConnectionRecord{a, b, c}
	SortByRecency(records)

	want := []string{"b", "a", "c"}
	for i, name := range want {
		if records[i].FriendlyName != name {
			t.Fatalf("order = [%s %s %s], want %v",
				records[0].FriendlyName, records[1].FriendlyName, records[2].FriendlyName, want)
		}
	}

	// Ties keep insertion order.
	d := validRecord()
	d.FriendlyName = "d"
	e := validRecord()
	e.FriendlyName = "e"
	d.LastUsedAt = now
	e.LastUsedAt = now
	tied := []ConnectionRecord{d, e}
	SortByRecency(tied)
	if tied[0].FriendlyName != "d" || tied[1].FriendlyName != "e" {
		t.Error("equal LastUsedAt must keep insertion order")
	}
}
