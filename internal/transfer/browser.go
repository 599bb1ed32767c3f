// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/spf13/afero"

	"github.com/ferryman-ssh/ferryman/internal/sshx"
)

// Side is one end of a transfer: listing, reading and writing on either the
// local filesystem or a session's SFTP channel. sshx.SftpChannel satisfies
// it directly; LocalSide adapts an afero filesystem.
type Side interface {
	List(dir string) ([]sshx.Entry, error)
	Stat(p string) (sshx.Entry, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Mkdir(p string) error
}

// LocalSide wraps an afero filesystem as a transfer Side. Production code
// passes afero.NewOsFs(); tests use a MemMapFs.
func LocalSide(fs afero.Fs) Side {
	return &localSide{fs: fs}
}

type localSide struct {
	fs afero.Fs
}

func (l *localSide) List(dir string) ([]sshx.Entry, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("list local dir %s: %w", dir, err)
	}
	entries := make([]sshx.Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, sshx.Entry{
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

func (l *localSide) Stat(p string) (sshx.Entry, error) {
	info, err := l.fs.Stat(p)
	if err != nil {
		return sshx.Entry{}, fmt.Errorf("stat local path %s: %w", p, err)
	}
	return sshx.Entry{Name: info.Name(), Path: p, Size: info.Size(), IsDir: info.IsDir()}, nil
}

func (l *localSide) Open(p string) (io.ReadCloser, error) {
	f, err := l.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open local file %s: %w", p, err)
	}
	return f, nil
}

func (l *localSide) Create(p string) (io.WriteCloser, error) {
	f, err := l.fs.Create(p)
	if err != nil {
		return nil, fmt.Errorf("create local file %s: %w", p, err)
	}
	return f, nil
}

func (l *localSide) Mkdir(p string) error {
	if err := l.fs.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("create local dir %s: %w", p, err)
	}
	return nil
}

// Browser is a cursor over one Side's directory tree, used by the wizard's
// source and target steps. It is direction-agnostic: the same type browses
// the local disk for uploads and the remote host for downloads.
type Browser struct {
	side Side
	dir  string
}

// NewBrowser starts a browser at the given directory.
func NewBrowser(side Side, start string) *Browser {
	if start == "" {
		start = "/"
	}
	return &Browser{side: side, dir: path.Clean(start)}
}

// Dir returns the directory the browser currently points at.
func (b *Browser) Dir() string { return b.dir }

// List returns the current directory's entries, directories first.
func (b *Browser) List() ([]sshx.Entry, error) {
	return b.side.List(b.dir)
}

// Enter descends into a child directory.
func (b *Browser) Enter(name string) error {
	target := path.Join(b.dir, name)
	entry, err := b.side.Stat(target)
	if err != nil {
		return err
	}
	if !entry.IsDir {
		return fmt.Errorf("%s is not a directory", target)
	}
	b.dir = target
	return nil
}

// Up ascends to the parent directory; at the root it stays put.
func (b *Browser) Up() {
	b.dir = path.Dir(b.dir)
}
