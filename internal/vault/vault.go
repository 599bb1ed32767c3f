// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package vault implements the encrypted on-disk store for connection
// records. The file is always persisted as ciphertext: an argon2id key is
// derived from the master password with a per-file random salt, the JSON
// payload is zstd-compressed and sealed with AES-256-GCM, and the header
// (version, KDF parameters, salt, nonce) is bound as additional data so it
// cannot be swapped without detection.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/argon2"

	"github.com/ferryman-ssh/ferryman/internal/model"
	"github.com/ferryman-ssh/ferryman/internal/security"
)

// Sentinel errors for the vault failure taxonomy. A wrong master password
// and a tampered ciphertext are indistinguishable by construction (the AEAD
// rejects both the same way), so both surface as ErrWrongPassword.
// ErrVaultCorrupt is reserved for structural damage to the file framing.
var (
	ErrWrongPassword      = errors.New("wrong master password or vault tampered")
	ErrVaultCorrupt       = errors.New("vault file is corrupt")
	ErrUnsupportedVersion = errors.New("vault file version not supported")
	ErrLocked             = errors.New("vault is locked")
)

const (
	magic       = "FERRYVLT"
	formatVersion = 1

	flagZstd = 0x01

	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	maxKDFTime        = 32
	maxKDFMemoryKiB   = 1 << 20 // 1 GiB
	maxKDFParallelism = 16
)

// KDFParams are the argon2id cost parameters recorded in the vault header,
// so they can be tuned without a format break.
type KDFParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
}

// DefaultKDFParams are deliberately slow; unlocking must not be cheap.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKiB: 64 * 1024, Parallelism: 4}
}

// Payload is the plaintext content of the vault.
type Payload struct {
	Records      []model.ConnectionRecord `json:"records"`
	LastLocalDir string                   `json:"last_local_dir,omitempty"`
}

// Vault owns the vault file and, after a successful Unlock or Create, the
// derived key. All operations are serialized so ChangePassword cannot race a
// concurrent unlock or persist.
type Vault struct {
	mu     sync.Mutex
	path   string
	params KDFParams
	salt   []byte
	key    security.Secret
}

// New returns a Vault for the given file path. The file may not exist yet.
func New(path string) *Vault {
	return &Vault{path: path, params: DefaultKDFParams()}
}

// Path returns the vault file location.
func (v *Vault) Path() string { return v.path }

// Exists reports whether a vault file is present on disk.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Unlocked reports whether a derived key is currently held.
func (v *Vault) Unlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key != nil
}

// Create initializes a new vault file with the given master password and
// payload, and leaves the vault unlocked.
func (v *Vault) Create(password string, p Payload) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(password, salt, v.params)
	if err := v.writeLocked(key, salt, p); err != nil {
		return err
	}
	v.salt = salt
	v.setKey(key)
	return nil
}

// Unlock derives the key from the master password, decrypts the vault file
// and returns its payload. On success the key is retained for later Persist
// calls until Lock is called.
func (v *Vault) Unlock(password string) (Payload, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if err != nil {
		return Payload{}, fmt.Errorf("read vault file: %w", err)
	}
	hdr, ciphertext, err := parseHeader(data)
	if err != nil {
		return Payload{}, err
	}

	key := deriveKey(password, hdr.salt, hdr.params)
	plaintext, err := open(key, hdr, ciphertext)
	if err != nil {
		return Payload{}, err
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: payload decode: %v", ErrVaultCorrupt, err)
	}

	v.params = hdr.params
	v.salt = hdr.salt
	v.setKey(key)
	return p, nil
}

// Persist re-encrypts the payload with the held key and a fresh nonce and
// commits it via write-to-temp plus rename, so a crash mid-write never
// corrupts the existing vault.
func (v *Vault) Persist(p Payload) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key == nil {
		return ErrLocked
	}
	return v.writeLocked(v.key.Bytes(), v.salt, p)
}

// ChangePassword verifies the old password against the on-disk file, then
// re-encrypts the current payload under a key derived from the new password
// with a fresh salt and nonce.
func (v *Vault) ChangePassword(oldPassword, newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if err != nil {
		return fmt.Errorf("read vault file: %w", err)
	}
	hdr, ciphertext, err := parseHeader(data)
	if err != nil {
		return err
	}
	oldKey := deriveKey(oldPassword, hdr.salt, hdr.params)
	plaintext, err := open(oldKey, hdr, ciphertext)
	zero(oldKey)
	if err != nil {
		return err
	}
	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return fmt.Errorf("%w: payload decode: %v", ErrVaultCorrupt, err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	newKey := deriveKey(newPassword, salt, v.params)
	if err := v.writeLocked(newKey, salt, p); err != nil {
		return err
	}
	v.salt = salt
	v.setKey(newKey)
	return nil
}

// Lock discards the derived key. Subsequent Persist calls fail with
// ErrLocked until the vault is unlocked again.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.key.Zero()
}

func (v *Vault) setKey(key []byte) {
	v.key.Zero()
	v.key = security.Secret(key)
}

// header is the parsed fixed-size prefix of a vault file.
type header struct {
	raw    []byte // exact header bytes, bound as AEAD additional data
	flags  byte
	params KDFParams
	salt   []byte
	nonce  []byte
}

func headerSize() int { return len(magic) + 1 + 1 + 4 + 4 + 1 + 1 + 1 + saltSize + nonceSize }

func buildHeader(flags byte, params KDFParams, salt, nonce []byte) []byte {
	buf := make([]byte, 0, headerSize())
	buf = append(buf, magic...)
	buf = append(buf, formatVersion, flags)
	buf = binary.BigEndian.AppendUint32(buf, params.Time)
	buf = binary.BigEndian.AppendUint32(buf, params.MemoryKiB)
	buf = append(buf, params.Parallelism, byte(len(salt)), byte(len(nonce)))
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	return buf
}

func parseHeader(data []byte) (header, []byte, error) {
	if len(data) < len(magic)+2 {
		return header{}, nil, fmt.Errorf("%w: file too short", ErrVaultCorrupt)
	}
	if string(data[:len(magic)]) != magic {
		return header{}, nil, fmt.Errorf("%w: bad magic", ErrVaultCorrupt)
	}
	version := data[len(magic)]
	if version != formatVersion {
		return header{}, nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	if len(data) < headerSize() {
		return header{}, nil, fmt.Errorf("%w: truncated header", ErrVaultCorrupt)
	}

	off := len(magic) + 1
	flags := data[off]
	off++
	params := KDFParams{
		Time:      binary.BigEndian.Uint32(data[off : off+4]),
		MemoryKiB: binary.BigEndian.Uint32(data[off+4 : off+8]),
	}
	params.Parallelism = data[off+8]
	saltLen := int(data[off+9])
	nonceLen := int(data[off+10])
	off += 11
	if saltLen != saltSize || nonceLen != nonceSize {
		return header{}, nil, fmt.Errorf("%w: bad salt/nonce length", ErrVaultCorrupt)
	}
	// Bounds keep a damaged header from turning key derivation into an
	// unbounded memory or CPU request.
	if params.Time == 0 || params.Time > maxKDFTime ||
		params.MemoryKiB == 0 || params.MemoryKiB > maxKDFMemoryKiB ||
		params.Parallelism == 0 || params.Parallelism > maxKDFParallelism {
		return header{}, nil, fmt.Errorf("%w: bad KDF parameters", ErrVaultCorrupt)
	}
	h := header{
		raw:    data[:headerSize()],
		flags:  flags,
		params: params,
		salt:   data[off : off+saltLen],
		nonce:  data[off+saltLen : off+saltLen+nonceLen],
	}
	return h, data[headerSize():], nil
}

func deriveKey(password string, salt []byte, params KDFParams) []byte {
	return argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, keySize)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

func open(key []byte, hdr header, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, hdr.nonce, ciphertext, hdr.raw)
	if err != nil {
		// GCM cannot tell a bad key from flipped ciphertext bytes; report
		// both identically so the failure mode leaks nothing.
		return nil, ErrWrongPassword
	}
	if hdr.flags&flagZstd != 0 {
		plaintext, err = decompress(plaintext)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrVaultCorrupt, err)
		}
	}
	return plaintext, nil
}

// writeLocked seals the payload and atomically replaces the vault file.
// Callers must hold v.mu.
func (v *Vault) writeLocked(key, salt []byte, p Payload) error {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	compressed := compress(plaintext)

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	hdr := buildHeader(flagZstd, v.params, salt, nonce)

	aead, err := newAEAD(key)
	if err != nil {
		return err
	}
	out := append(hdr, aead.Seal(nil, nonce, compressed, hdr)...)

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("create temp vault file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp vault file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp vault file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp vault file: %w", err)
	}
	if err := os.Rename(tmpName, v.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace vault file: %w", err)
	}
	return nil
}

func compress(b []byte) []byte {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		// The only failure mode is a bad option; fall back to storing raw
		// would change the flag accounting, so treat it as impossible.
		panic(err)
	}
	defer enc.Close()
	return enc.EncodeAll(b, nil)
}

func decompress(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(b, nil)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
