// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJunk(path string) error {
	return os.WriteFile(path, []byte("\t{{{ not yaml"), 0o600)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "ferryman.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VaultPath != filepath.Join(dir, "vault.dat") {
		t.Errorf("vault path = %s", cfg.VaultPath)
	}
	if cfg.LogPath != filepath.Join(dir, "ferryman.log") {
		t.Errorf("log path = %s", cfg.LogPath)
	}
	if cfg.KnownHostsPath != filepath.Join(dir, "known_hosts.db") {
		t.Errorf("known hosts path = %s", cfg.KnownHostsPath)
	}
	if cfg.ChunkSize != 32*1024 {
		t.Errorf("chunk size = %d", cfg.ChunkSize)
	}
	if cfg.ProgressInterval != 250*time.Millisecond {
		t.Errorf("progress interval = %v", cfg.ProgressInterval)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout = %v", cfg.ConnectTimeout)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ferryman.yaml")
	want := Config{
		VaultPath:        "/data/vault.dat",
		LogPath:          "/data/ferryman.log",
		KnownHostsPath:   "/data/hosts.db",
		ChunkSize:        128 * 1024,
		ProgressInterval: 500 * time.Millisecond,
		ConnectTimeout:   30 * time.Second,
	}
	if err := Save(want, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FERRYMAN_CHUNK_SIZE", "65536")
	t.Setenv("FERRYMAN_CONNECT_TIMEOUT", "3s")
	cfg, err := Load(filepath.Join(t.TempDir(), "ferryman.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkSize != 65536 {
		t.Errorf("chunk size = %d, want env override 65536", cfg.ChunkSize)
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("connect timeout = %v, want 3s", cfg.ConnectTimeout)
	}
}

func TestMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ferryman.yaml")
	if err := Save(Config{}, path); err != nil {
		t.Fatal(err)
	}
	// Overwrite with junk.
	if err := writeJunk(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config accepted")
	}
}
