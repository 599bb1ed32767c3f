// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ferryman-ssh/ferryman/internal/model"
	"github.com/ferryman-ssh/ferryman/internal/vault"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.fv")
	s, err := Create(vault.New(path), "pw")
	if err != nil {
		t.Fatalf("Create store: %v", err)
	}
	return s, path
}

func record(name, host string) model.ConnectionRecord {
	return model.ConnectionRecord{
		FriendlyName: name,
		Host:         host,
		Port:         22,
		User:         "alice",
		Credential: model.Credential{
			Kind:     model.CredentialPassword,
			Password: "pw",
		},
	}
}

func TestAddAssignsIDAndPersists(t *testing.T) {
	s, path := newTestStore(t)
	added, err := s.Add(record("one", "one.example.com"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID == "" {
		t.Fatal("Add must assign an id")
	}

	// A restart sees the record.
	reopened, err := Open(vault.New(path), "pw")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.Get(added.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Host != "one.example.com" {
		t.Errorf("Host = %q", got.Host)
	}
}

func TestAddRejectsInvalidAndDuplicate(t *testing.T) {
	s, _ := newTestStore(t)

	bad := record("bad", "")
	if _, err := s.Add(bad); err == nil {
		t.Error("Add must validate the record")
	}

	added, err := s.Add(record("one", "one.example.com"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	dup := record("two", "two.example.com")
	dup.ID = added.ID
	if _, err := s.Add(dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add duplicate id = %v, want ErrDuplicateID", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	added, err := s.Add(record("one", "one.example.com"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	added.FriendlyName = "renamed"
	if err := s.Update(added); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(added.ID)
	if got.FriendlyName != "renamed" {
		t.Errorf("FriendlyName = %q", got.FriendlyName)
	}

	missing := added
	missing.ID = "nope"
	if err := s.Update(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}

	if err := s.Delete(added.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(added.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(added.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete twice = %v, want ErrNotFound", err)
	}
}

func TestRecencyOrdering(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.Add(record("a", "a.example.com"))
	b, _ := s.Add(record("b", "b.example.com"))
	c, _ := s.Add(record("c", "c.example.com"))

	// Connect to a, b, c in sequence: listing is most-recently-used first.
	for _, id := range []string{a.ID, b.ID, c.ID} {
		if err := s.RecordUsed(id, true); err != nil {
			t.Fatalf("RecordUsed: %v", err)
		}
	}
	names := listNames(s)
	if names[0] != "c" || names[1] != "b" || names[2] != "a" {
		t.Fatalf("order after c,b,a usage = %v", names)
	}

	// Reconnecting to the oldest moves it to the front.
	if err := s.RecordUsed(a.ID, true); err != nil {
		t.Fatalf("RecordUsed: %v", err)
	}
	names = listNames(s)
	if names[0] != "a" {
		t.Errorf("order after reconnect = %v, want a first", names)
	}

	// A failed attempt records history but does not reorder.
	if err := s.RecordUsed(b.ID, false); err != nil {
		t.Fatalf("RecordUsed: %v", err)
	}
	names = listNames(s)
	if names[0] != "a" {
		t.Errorf("failed attempt must not reorder, got %v", names)
	}
	got, _ := s.Get(b.ID)
	if n := len(got.History); n == 0 || got.History[n-1].OK {
		t.Error("failed attempt must be recorded in history")
	}
}

func TestLastDirs(t *testing.T) {
	s, path := newTestStore(t)
	added, _ := s.Add(record("one", "one.example.com"))

	if err := s.SetLastLocalDir("/tmp/downloads"); err != nil {
		t.Fatalf("SetLastLocalDir: %v", err)
	}
	if err := s.SetLastRemoteDir(added.ID, "/var/www"); err != nil {
		t.Fatalf("SetLastRemoteDir: %v", err)
	}

	reopened, err := Open(vault.New(path), "pw")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := reopened.LastLocalDir(); got != "/tmp/downloads" {
		t.Errorf("LastLocalDir = %q", got)
	}
	r, _ := reopened.Get(added.ID)
	if r.LastRemoteDir != "/var/www" {
		t.Errorf("LastRemoteDir = %q", r.LastRemoteDir)
	}
}

func TestMutationAfterLockFails(t *testing.T) {
	s, _ := newTestStore(t)
	s.Lock()
	if _, err := s.Add(record("one", "one.example.com")); !errors.Is(err, vault.ErrLocked) {
		t.Errorf("Add after Lock = %v, want ErrLocked", err)
	}
}

func listNames(s *Store) []string {
	var names []string
	for _, r := range s.List() {
		names = append(names, r.FriendlyName)
	}
	return names
}
