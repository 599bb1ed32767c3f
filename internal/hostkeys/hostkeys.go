// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package hostkeys stores trusted SSH host keys in a local SQLite database.
// First contact with a host fails until its key is trusted explicitly; a
// changed key is a mismatch and always fails. The trust store is
// deliberately separate from the vault: host keys are public material and
// must be checkable before any credential is used.
package hostkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// KnownHost is one trusted host key, in authorized_keys line format.
type KnownHost struct {
	bun.BaseModel `bun:"table:known_hosts"`

	Host    string `bun:"host,pk"`
	KeyLine string `bun:"key_line,notnull"`
	AddedAt string `bun:"added_at,notnull"`
}

// Store is the SQLite-backed trust store.
type Store struct {
	db *bun.DB
}

// Open opens (and if needed initializes) the trust store at the given DSN.
func Open(dsn string) (*Store, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open known_hosts database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*KnownHost)(nil)).IfNotExists().Exec(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create known_hosts table: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the trusted key line for a host, or "" when the host is
// unknown.
func (s *Store) Get(host string) (string, error) {
	var kh KnownHost
	err := s.db.NewSelect().Model(&kh).Where("host = ?", host).Limit(1).Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query known_hosts: %w", err)
	}
	return kh.KeyLine, nil
}

// Trust records (or replaces) the trusted key line for a host.
func (s *Store) Trust(host, keyLine string) error {
	kh := &KnownHost{
		Host:    host,
		KeyLine: keyLine,
		AddedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.db.NewInsert().Model(kh).
		On("CONFLICT (host) DO UPDATE").
		Set("key_line = EXCLUDED.key_line").
		Set("added_at = EXCLUDED.added_at").
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("trust host key: %w", err)
	}
	return nil
}

// Remove forgets a host's trusted key.
func (s *Store) Remove(host string) error {
	_, err := s.db.NewDelete().Model((*KnownHost)(nil)).Where("host = ?", host).Exec(context.Background())
	if err != nil {
		return fmt.Errorf("remove host key: %w", err)
	}
	return nil
}

// List returns all trusted hosts, oldest first.
func (s *Store) List() ([]KnownHost, error) {
	var hosts []KnownHost
	err := s.db.NewSelect().Model(&hosts).Order("added_at ASC").Scan(context.Background())
	if err != nil {
		return nil, fmt.Errorf("list known_hosts: %w", err)
	}
	return hosts, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
