// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package hostkeys

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "known_hosts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUnknownHostReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	line, err := s.Get("nowhere.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if line != "" {
		t.Errorf("Get unknown host = %q, want empty", line)
	}
}

func TestTrustGetRoundtrip(t *testing.T) {
	s := openTestStore(t)
	const keyLine = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIFakeKeyData host"
	if err := s.Trust("one.example.com", keyLine); err != nil {
		t.Fatalf("Trust: %v", err)
	}
	got, err := s.Get("one.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != keyLine {
		t.Errorf("Get = %q, want stored line", got)
	}
}

func TestTrustReplacesExistingKey(t *testing.T) {
	s := openTestStore(t)
	if err := s.Trust("one.example.com", "old-line"); err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if err := s.Trust("one.example.com", "new-line"); err != nil {
		t.Fatalf("Trust replace: %v", err)
	}
	got, err := s.Get("one.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "new-line" {
		t.Errorf("Get = %q, want replacement", got)
	}

	hosts, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hosts) != 1 {
		t.Errorf("List returned %d rows, want 1 after upsert", len(hosts))
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	if err := s.Trust("one.example.com", "line"); err != nil {
		t.Fatalf("Trust: %v", err)
	}
	if err := s.Remove("one.example.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, err := s.Get("one.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("Get after Remove = %q, want empty", got)
	}

	// Removing an unknown host is not an error.
	if err := s.Remove("never-seen.example.com"); err != nil {
		t.Errorf("Remove unknown host: %v", err)
	}
}
