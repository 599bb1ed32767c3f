// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshx is the narrow capability interface between the core and the
// SSH/SFTP protocol stack. The session manager and transfer engine consume
// these interfaces only; the concrete implementation on x/crypto/ssh and
// pkg/sftp lives in dialer.go and is swapped for fakes in tests.
package sshx

import (
	"errors"
	"io"

	"github.com/ferryman-ssh/ferryman/internal/model"
)

// Connection error taxonomy. Dial failures are classified into exactly one
// of these so callers can react without parsing messages.
var (
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrHostKeyMismatch    = errors.New("host key mismatch")
	ErrUnknownHostKey     = errors.New("unknown host key")
	ErrTimeout            = errors.New("connection timed out")
)

// Dialer opens authenticated connections to remote hosts.
type Dialer interface {
	Dial(host string, port int, user string, cred model.Credential) (Conn, error)
}

// Conn is one authenticated connection. It can multiplex a PTY channel and
// an SFTP subsystem channel; channel exclusivity is the caller's concern.
type Conn interface {
	OpenPty(cols, rows int) (PtyChannel, error)
	OpenSftp() (SftpChannel, error)
	Close() error
}

// PtyChannel is a duplex byte stream attached to a remote pseudo-terminal.
type PtyChannel interface {
	io.Reader
	io.Writer
	Resize(cols, rows int) error
	Close() error
}

// Entry is one remote or local directory entry as the browser and transfer
// engine see it.
type Entry struct {
	Name  string
	Path  string
	Size  int64
	IsDir bool
}

// SftpChannel is the file-transfer surface of a connection.
type SftpChannel interface {
	List(path string) ([]Entry, error)
	Stat(path string) (Entry, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
	Mkdir(path string) error
	Close() error
}
