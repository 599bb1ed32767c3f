// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transfer builds and executes SFTP upload and download jobs. Job
// construction is a small wizard state machine; execution streams files in
// chunks with coalesced progress reporting and cooperative cancellation.
package transfer

import (
	"errors"
	"sync"
)

var (
	// ErrSessionBusy is returned when the session already runs a job.
	ErrSessionBusy = errors.New("transfer already active on session")
	// ErrCancelled marks a job stopped by user request.
	ErrCancelled = errors.New("transfer cancelled")
	// ErrPermissionDenied classifies filesystem permission failures on
	// either side of a transfer.
	ErrPermissionDenied = errors.New("permission denied")
)

// Direction distinguishes upload (local to remote) from download.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
)

func (d Direction) String() string {
	if d == DirectionUpload {
		return "upload"
	}
	return "download"
}

// Outcome is the terminal result of a job.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// JobSpec is a fully confirmed transfer request produced by the wizard.
type JobSpec struct {
	SessionID  string
	Direction  Direction
	SourcePath string
	TargetDir  string
}

// Job is one running or finished transfer.
type Job struct {
	ID        string
	SessionID string
	Direction Direction
	Source    string
	TargetDir string

	mu         sync.Mutex
	totalBytes int64
	bytesDone  int64
	outcome    Outcome
	finished   bool
	err        error

	cancelled chan struct{} // closed to request cancellation
	done      chan struct{} // closed once the job reaches a terminal outcome
	cancelOne sync.Once
}

// Progress returns the current byte counts.
func (j *Job) Progress() (bytesDone, totalBytes int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.bytesDone, j.totalBytes
}

// Finished reports whether the job reached a terminal outcome, and which.
func (j *Job) Finished() (Outcome, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome, j.finished
}

// Err returns the failure cause for an OutcomeFailed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Cancel requests cooperative cancellation. It returns immediately; the job
// stops at the next chunk or file boundary.
func (j *Job) Cancel() {
	j.cancelOne.Do(func() { close(j.cancelled) })
}

// Done is closed when the job has reached a terminal outcome.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) cancelRequested() bool {
	select {
	case <-j.cancelled:
		return true
	default:
		return false
	}
}
