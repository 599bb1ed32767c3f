// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package sshx

import (
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/ferryman-ssh/ferryman/internal/model"
)

// DefaultConnectTimeout bounds the TCP connect and SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

// HostKeyDB is the trust lookup the dialer verifies host keys against.
type HostKeyDB interface {
	Get(host string) (string, error)
}

// NetDialer is the production Dialer on golang.org/x/crypto/ssh.
type NetDialer struct {
	Timeout  time.Duration
	HostKeys HostKeyDB
}

// Dial opens and authenticates a connection to host:port. A
// passphrase-protected private key is decrypted locally before the host is
// contacted, so a bad passphrase never produces network traffic.
func (d *NetDialer) Dial(host string, port int, user string, cred model.Credential) (Conn, error) {
	auth, err := authMethod(cred)
	if err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	// The callback runs inside ssh.Dial; remember its verdict so the wrapped
	// handshake error can be classified precisely afterwards.
	var hostKeyErr error
	cfg := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{auth},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			hostKeyErr = d.verifyHostKey(hostname, key)
			return hostKeyErr
		},
		Timeout: timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		if hostKeyErr != nil {
			return nil, hostKeyErr
		}
		return nil, classifyDialError(err)
	}
	return &sshConn{client: client}, nil
}

// verifyHostKey checks the presented key against the trust store.
func (d *NetDialer) verifyHostKey(hostname string, key ssh.PublicKey) error {
	if d.HostKeys == nil {
		return fmt.Errorf("no host key store configured")
	}
	// The hostname can include the port; the store is keyed by bare host.
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	presented := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
	known, err := d.HostKeys.Get(host)
	if err != nil {
		return fmt.Errorf("query known hosts: %w", err)
	}
	if known == "" {
		return fmt.Errorf("%w for %s: %s", ErrUnknownHostKey, host, presented)
	}
	if strings.TrimSpace(known) != presented {
		return fmt.Errorf("%w for %s: remote presented %s", ErrHostKeyMismatch, host, presented)
	}
	return nil
}

// authMethod builds the ssh auth method for a credential.
func authMethod(cred model.Credential) (ssh.AuthMethod, error) {
	switch cred.Kind {
	case model.CredentialPassword:
		return ssh.Password(cred.Password), nil
	case model.CredentialPrivateKey:
		keyPath := ExpandTilde(cred.KeyPath)
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", keyPath, err)
		}
		var signer ssh.Signer
		if cred.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(cred.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
		}
		return ssh.PublicKeys(signer), nil
	default:
		return nil, fmt.Errorf("unknown credential kind %q", cred.Kind)
	}
}

// classifyDialError maps a raw dial error onto the connection taxonomy.
// x/crypto/ssh does not expose typed errors for these cases, so this matches
// message fragments the way the library emits them.
func classifyDialError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"),
		strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	case strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "handshake timed out"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "network is unreachable"):
		return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	return err
}

// FetchHostKey connects just far enough into the handshake to learn the
// host's public key, for trust-on-first-use flows. The returned string is an
// authorized_keys line.
func FetchHostKey(host string, port int, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	keyCh := make(chan ssh.PublicKey, 1)
	const probeDone = "ferryman: host key retrieved"
	cfg := &ssh.ClientConfig{
		// No authentication needed; the host key arrives during key exchange.
		User: "ferryman-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyCh <- key
			return fmt.Errorf("%s", probeDone)
		},
		Timeout: timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err == nil {
		// Should not happen: the callback always aborts the handshake.
		client.Close()
		return "", fmt.Errorf("handshake succeeded unexpectedly without capturing a host key")
	}
	if !strings.Contains(err.Error(), probeDone) {
		return "", classifyDialError(err)
	}
	key := <-keyCh
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key))), nil
}

// ExpandTilde resolves a leading ~/ against the user's home directory.
func ExpandTilde(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// sshConn adapts *ssh.Client to the Conn capability.
type sshConn struct {
	client *ssh.Client
}

func (c *sshConn) OpenPty(cols, rows int) (PtyChannel, error) {
	sess, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session channel: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}
	return &ptyChannel{sess: sess, stdin: stdin, stdout: stdout}, nil
}

func (c *sshConn) OpenSftp() (SftpChannel, error) {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}
	return &sftpChannel{client: client}, nil
}

func (c *sshConn) Close() error {
	return c.client.Close()
}

// ptyChannel is the live terminal channel of a session.
type ptyChannel struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
}

func (p *ptyChannel) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *ptyChannel) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *ptyChannel) Resize(cols, rows int) error {
	return p.sess.WindowChange(rows, cols)
}

func (p *ptyChannel) Close() error {
	_ = p.stdin.Close()
	return p.sess.Close()
}

// sftpChannel adapts *sftp.Client to the SftpChannel capability.
type sftpChannel struct {
	client *sftp.Client
}

func (s *sftpChannel) List(dir string) ([]Entry, error) {
	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list remote dir %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:  info.Name(),
			Path:  path.Join(dir, info.Name()),
			Size:  info.Size(),
			IsDir: info.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func (s *sftpChannel) Stat(p string) (Entry, error) {
	info, err := s.client.Stat(p)
	if err != nil {
		return Entry{}, fmt.Errorf("stat remote path %s: %w", p, err)
	}
	return Entry{Name: info.Name(), Path: p, Size: info.Size(), IsDir: info.IsDir()}, nil
}

func (s *sftpChannel) Open(p string) (io.ReadCloser, error) {
	f, err := s.client.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open remote file %s: %w", p, err)
	}
	return f, nil
}

func (s *sftpChannel) Create(p string) (io.WriteCloser, error) {
	f, err := s.client.Create(p)
	if err != nil {
		return nil, fmt.Errorf("create remote file %s: %w", p, err)
	}
	return f, nil
}

func (s *sftpChannel) Mkdir(p string) error {
	if err := s.client.Mkdir(p); err != nil {
		// Creating an already-present directory is fine.
		if info, statErr := s.client.Stat(p); statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("create remote dir %s: %w", p, err)
	}
	return nil
}

func (s *sftpChannel) Close() error {
	return s.client.Close()
}
