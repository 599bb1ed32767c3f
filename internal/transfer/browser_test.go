// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"testing"

	"github.com/spf13/afero"
)

func seedFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	dirs := []string{"/home/deck/docs", "/home/deck/bin", "/home/deck/empty"}
	for _, d := range dirs {
		if err := fs.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		"/home/deck/notes.txt":      "some notes",
		"/home/deck/archive.tar":    "tar bytes",
		"/home/deck/docs/readme.md": "# readme",
	}
	for p, content := range files {
		if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestBrowserListsDirsFirst(t *testing.T) {
	b := NewBrowser(LocalSide(seedFs(t)), "/home/deck")
	entries, err := b.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	wantNames := []string{"bin", "docs", "empty", "archive.tar", "notes.txt"}
	if len(entries) != len(wantNames) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantNames))
	}
	for i, want := range wantNames {
		if entries[i].Name != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Name, want)
		}
	}
	for i := 0; i < 3; i++ {
		if !entries[i].IsDir {
			t.Errorf("entry %s should sort as directory", entries[i].Name)
		}
	}
}

func TestBrowserEnterAndUp(t *testing.T) {
	b := NewBrowser(LocalSide(seedFs(t)), "/home/deck")
	if err := b.Enter("docs"); err != nil {
		t.Fatalf("Enter(docs) error = %v", err)
	}
	if b.Dir() != "/home/deck/docs" {
		t.Errorf("dir = %s", b.Dir())
	}
	b.Up()
	if b.Dir() != "/home/deck" {
		t.Errorf("dir after up = %s", b.Dir())
	}
}

func TestBrowserEnterRejectsFiles(t *testing.T) {
	b := NewBrowser(LocalSide(seedFs(t)), "/home/deck")
	if err := b.Enter("notes.txt"); err == nil {
		t.Error("entering a file must fail")
	}
	if err := b.Enter("missing"); err == nil {
		t.Error("entering a missing name must fail")
	}
	if b.Dir() != "/home/deck" {
		t.Errorf("failed enter moved the browser to %s", b.Dir())
	}
}

func TestBrowserUpStopsAtRoot(t *testing.T) {
	b := NewBrowser(LocalSide(afero.NewMemMapFs()), "/")
	b.Up()
	if b.Dir() != "/" {
		t.Errorf("up from root moved to %s", b.Dir())
	}
}

func TestBrowserEmptyStartDefaultsToRoot(t *testing.T) {
	b := NewBrowser(LocalSide(afero.NewMemMapFs()), "")
	if b.Dir() != "/" {
		t.Errorf("default dir = %s, want /", b.Dir())
	}
}
