// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package vault

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ferryman-ssh/ferryman/internal/model"
)

// fastParams keeps argon2 cheap in tests.
func fastParams() KDFParams { return KDFParams{Time: 1, MemoryKiB: 8, Parallelism: 1} }

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v := New(filepath.Join(t.TempDir(), "vault.fv"))
	v.params = fastParams()
	return v
}

func samplePayload() Payload {
	return Payload{
		Records: []model.ConnectionRecord{
			{
				ID:   "r1",
				Host: "example.com",
				Port: 22,
				User: "alice",
				Credential: model.Credential{
					Kind:    model.CredentialPrivateKey,
					KeyPath: "~/.ssh/id_ed25519",
				},
				LastUsedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
			},
		},
		LastLocalDir: "/home/alice",
	}
}

func TestCreateUnlockRoundtrip(t *testing.T) {
	v := newTestVault(t)
	want := samplePayload()
	if err := v.Create("Tr0ub4dor", want); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Simulate a restart with a fresh Vault over the same file.
	reopened := New(v.Path())
	got, err := reopened.Unlock("Tr0ub4dor")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unlock payload = %+v, want %+v", got, want)
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	v := newTestVault(t)
	if err := v.Create("Tr0ub4dor", samplePayload()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := New(v.Path()).Unlock("wrong")
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Unlock with wrong password = %v, want ErrWrongPassword", err)
	}
}

func TestUnlockTamperedFile(t *testing.T) {
	v := newTestVault(t)
	if err := v.Create("pw", samplePayload()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	original, err := os.ReadFile(v.Path())
	if err != nil {
		t.Fatalf("read vault: %v", err)
	}

	// Flipping any byte must fail closed: framing damage reports corruption,
	// body damage is indistinguishable from a wrong password. Never a
	// silently wrong decode.
	for i := range original {
		tampered := append([]byte(nil), original...)
		tampered[i] ^= 0xff
		if err := os.WriteFile(v.Path(), tampered, 0600); err != nil {
			t.Fatalf("write tampered vault: %v", err)
		}
		_, err := New(v.Path()).Unlock("pw")
		if err == nil {
			t.Fatalf("Unlock succeeded with byte %d flipped", i)
		}
		if !errors.Is(err, ErrVaultCorrupt) && !errors.Is(err, ErrWrongPassword) &&
			!errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("byte %d: unexpected error class: %v", i, err)
		}
	}
}

func TestUnlockUnsupportedVersion(t *testing.T) {
	v := newTestVault(t)
	if err := v.Create("pw", Payload{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := os.ReadFile(v.Path())
	if err != nil {
		t.Fatalf("read vault: %v", err)
	}
	data[len(magic)] = 99
	if err := os.WriteFile(v.Path(), data, 0600); err != nil {
		t.Fatalf("write vault: %v", err)
	}
	_, err = New(v.Path()).Unlock("pw")
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Unlock = %v, want ErrUnsupportedVersion", err)
	}
}

func TestPersistRequiresUnlock(t *testing.T) {
	v := newTestVault(t)
	if err := v.Persist(Payload{}); !errors.Is(err, ErrLocked) {
		t.Errorf("Persist on locked vault = %v, want ErrLocked", err)
	}
}

func TestLockDiscardsKey(t *testing.T) {
	v := newTestVault(t)
	if err := v.Create("pw", samplePayload()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !v.Unlocked() {
		t.Fatal("vault should be unlocked after Create")
	}
	v.Lock()
	if v.Unlocked() {
		t.Error("vault should be locked after Lock")
	}
	if err := v.Persist(Payload{}); !errors.Is(err, ErrLocked) {
		t.Errorf("Persist after Lock = %v, want ErrLocked", err)
	}
}

func TestPersistRewritesCiphertext(t *testing.T) {
	v := newTestVault(t)
	if err := v.Create("pw", samplePayload()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := os.ReadFile(v.Path())
	if err := v.Persist(samplePayload()); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	after, _ := os.ReadFile(v.Path())
	if reflect.DeepEqual(before, after) {
		t.Error("Persist must use a fresh nonce; identical file bytes suggest nonce reuse")
	}

	got, err := New(v.Path()).Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock after Persist: %v", err)
	}
	if !reflect.DeepEqual(got, samplePayload()) {
		t.Error("payload changed across Persist")
	}
}

func TestChangePassword(t *testing.T) {
	v := newTestVault(t)
	want := samplePayload()
	if err := v.Create("old", want); err != nil {
		t.Fatalf("Create: %v", err)
	}
	saltBefore := append([]byte(nil), v.salt...)

	if err := v.ChangePassword("nope", "new"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("ChangePassword with wrong old password = %v, want ErrWrongPassword", err)
	}
	if err := v.ChangePassword("old", "new"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if reflect.DeepEqual(saltBefore, v.salt) {
		t.Error("ChangePassword must re-salt")
	}

	if _, err := New(v.Path()).Unlock("old"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("old password still unlocks after change: %v", err)
	}
	got, err := New(v.Path()).Unlock("new")
	if err != nil {
		t.Fatalf("Unlock with new password: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("payload changed across ChangePassword")
	}

	// The vault stays usable with the swapped-in key.
	if err := v.Persist(want); err != nil {
		t.Errorf("Persist after ChangePassword: %v", err)
	}
}

func TestVaultFileIsNeverPlaintext(t *testing.T) {
	v := newTestVault(t)
	p := samplePayload()
	p.Records[0].Credential = model.Credential{
		Kind:     model.CredentialPassword,
		Password: "sup3rs3cret",
	}
	if err := v.Create("pw", p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := os.ReadFile(v.Path())
	if err != nil {
		t.Fatalf("read vault: %v", err)
	}
	for _, needle := range []string{"sup3rs3cret", "example.com", "alice"} {
		if containsBytes(data, needle) {
			t.Errorf("vault file contains plaintext %q", needle)
		}
	}
}

func containsBytes(haystack []byte, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return true
		}
	}
	return false
}
