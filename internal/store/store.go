// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package store is the typed, ordered collection of connection records on
// top of the encrypted vault. Every mutating call re-encrypts and persists
// the whole store; with tens to low hundreds of records there is no partial
// write path to get wrong.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ferryman-ssh/ferryman/internal/model"
	"github.com/ferryman-ssh/ferryman/internal/vault"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("connection record not found")
	// ErrDuplicateID is returned when adding a record whose id is taken.
	ErrDuplicateID = errors.New("connection record id already exists")
)

// Store holds the unlocked record collection and persists it through the
// vault. Records are kept most-recently-used first; never-used records keep
// insertion order at the tail.
type Store struct {
	mu      sync.Mutex
	vault   *vault.Vault
	payload vault.Payload
}

// Open unlocks an existing vault and returns the store over its records.
func Open(v *vault.Vault, password string) (*Store, error) {
	p, err := v.Unlock(password)
	if err != nil {
		return nil, err
	}
	model.SortByRecency(p.Records)
	return &Store{vault: v, payload: p}, nil
}

// Create initializes a fresh vault with an empty record list.
func Create(v *vault.Vault, password string) (*Store, error) {
	p := vault.Payload{}
	if err := v.Create(password, p); err != nil {
		return nil, err
	}
	return &Store{vault: v, payload: p}, nil
}

// List returns the records in recency order. The slice is a copy; mutating
// it does not affect the store.
func (s *Store) List() []model.ConnectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ConnectionRecord, len(s.payload.Records))
	copy(out, s.payload.Records)
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (model.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.payload.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return model.ConnectionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add validates and appends a record, assigning an id when empty, and
// persists the store.
func (s *Store) Add(r model.ConnectionRecord) (model.ConnectionRecord, error) {
	if r.ID == "" {
		r.ID = model.NewRecordID()
	}
	if err := r.Validate(); err != nil {
		return model.ConnectionRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payload.Records {
		if existing.ID == r.ID {
			return model.ConnectionRecord{}, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
	}
	s.payload.Records = append(s.payload.Records, r)
	model.SortByRecency(s.payload.Records)
	if err := s.vault.Persist(s.payload); err != nil {
		return model.ConnectionRecord{}, err
	}
	return r, nil
}

// Update replaces the record with the same id and persists the store.
func (s *Store) Update(r model.ConnectionRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.payload.Records {
		if existing.ID == r.ID {
			s.payload.Records[i] = r
			model.SortByRecency(s.payload.Records)
			return s.vault.Persist(s.payload)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
}

// Delete removes the record with the given id and persists the store.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.payload.Records {
		if existing.ID == id {
			s.payload.Records = append(s.payload.Records[:i], s.payload.Records[i+1:]...)
			return s.vault.Persist(s.payload)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// RecordUsed logs a connection attempt on the record's history. A
// successful attempt bumps LastUsedAt, which moves the record to the front
// of the recency order. The store is persisted either way.
func (s *Store) RecordUsed(id string, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payload.Records {
		if s.payload.Records[i].ID == id {
			s.payload.Records[i].RecordAttempt(time.Now(), ok)
			model.SortByRecency(s.payload.Records)
			return s.vault.Persist(s.payload)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// SetLastRemoteDir remembers the last browsed remote directory of a record.
func (s *Store) SetLastRemoteDir(id, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payload.Records {
		if s.payload.Records[i].ID == id {
			s.payload.Records[i].LastRemoteDir = dir
			return s.vault.Persist(s.payload)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// LastLocalDir returns the store-wide last browsed local directory.
func (s *Store) LastLocalDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload.LastLocalDir
}

// SetLastLocalDir remembers the last browsed local directory.
func (s *Store) SetLastLocalDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload.LastLocalDir = dir
	return s.vault.Persist(s.payload)
}

// Lock forgets the vault key. The in-memory records stay usable for display
// but no further mutation can be persisted.
func (s *Store) Lock() {
	s.vault.Lock()
}
