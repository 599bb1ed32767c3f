// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the data types shared across Ferryman: connection
// records, credentials and connection history. These are the types the vault
// serializes, so field changes here are vault format changes.
package model

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxHistoryEntries bounds the per-record connection history.
const MaxHistoryEntries = 50

// CredentialKind discriminates the credential variant of a record.
type CredentialKind string

const (
	// CredentialPassword authenticates with a stored password.
	CredentialPassword CredentialKind = "password"
	// CredentialPrivateKey authenticates with a private key file,
	// optionally protected by a passphrase.
	CredentialPrivateKey CredentialKind = "private-key"
)

// Credential is the authentication material for a connection record. The
// plaintext only ever exists in process memory after the vault is unlocked;
// at rest it is part of the vault ciphertext.
type Credential struct {
	Kind       CredentialKind `json:"kind"`
	Password   string         `json:"password,omitempty"`
	KeyPath    string         `json:"key_path,omitempty"`
	Passphrase string         `json:"passphrase,omitempty"`
}

// Validate checks credential completeness for its kind.
func (c Credential) Validate() error {
	switch c.Kind {
	case CredentialPassword:
		if c.Password == "" {
			return fmt.Errorf("password credential requires a password")
		}
	case CredentialPrivateKey:
		if strings.TrimSpace(c.KeyPath) == "" {
			return fmt.Errorf("private key credential requires a key path")
		}
	default:
		return fmt.Errorf("unknown credential kind %q", c.Kind)
	}
	return nil
}

// HistoryEntry records one connection attempt.
type HistoryEntry struct {
	At time.Time `json:"at"`
	OK bool      `json:"ok"`
}

// ConnectionRecord is one saved remote host.
type ConnectionRecord struct {
	ID           string         `json:"id"`
	Host         string         `json:"host"`
	Port         int            `json:"port"`
	User         string         `json:"user"`
	FriendlyName string         `json:"friendly_name,omitempty"`
	Credential   Credential     `json:"credential"`
	LastUsedAt   time.Time      `json:"last_used_at"`
	History      []HistoryEntry `json:"history,omitempty"`

	// LastRemoteDir seeds the remote side of the transfer wizard.
	LastRemoteDir string `json:"last_remote_dir,omitempty"`
}

// NewRecordID returns a fresh unique record id.
func NewRecordID() string { return uuid.NewString() }

// Label returns the display name: the friendly name when set, user@host
// otherwise.
func (r ConnectionRecord) Label() string {
	if strings.TrimSpace(r.FriendlyName) != "" {
		return r.FriendlyName
	}
	return fmt.Sprintf("%s@%s", r.User, r.Host)
}

// Address returns the host:port dial address.
func (r ConnectionRecord) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Validate checks the record shape. It does not verify reachability or that
// a key file exists; that happens at connect time.
func (r ConnectionRecord) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", r.Port)
	}
	if strings.TrimSpace(r.User) == "" {
		return fmt.Errorf("user must not be empty")
	}
	if err := r.Credential.Validate(); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	return nil
}

// RecordAttempt appends a history entry, capping the history length, and
// bumps LastUsedAt on success. LastUsedAt drives recency ordering and is
// only moved by successful authentication.
func (r *ConnectionRecord) RecordAttempt(at time.Time, ok bool) {
	r.History = append(r.History, HistoryEntry{At: at, OK: ok})
	if len(r.History) > MaxHistoryEntries {
		r.History = r.History[len(r.History)-MaxHistoryEntries:]
	}
	if ok {
		r.LastUsedAt = at
	}
}

// SortByRecency orders records most-recently-used first. Records that have
// never been used keep their relative (insertion) order at the tail; ties on
// LastUsedAt also keep insertion order.
func SortByRecency(records []ConnectionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastUsedAt.After(records[j].LastUsedAt)
	})
}
