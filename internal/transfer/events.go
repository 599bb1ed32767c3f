// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

// Event is a presentation-facing notification from the transfer engine.
type Event interface{ transferEvent() }

// Progress reports byte counts for a running job. BytesDone never
// decreases across the events of one job.
type Progress struct {
	JobID       string
	SessionID   string
	BytesDone   int64
	TotalBytes  int64
	CurrentFile string
}

// Finished reports a job's terminal outcome. Err is set only for
// OutcomeFailed.
type Finished struct {
	JobID     string
	SessionID string
	Outcome   Outcome
	BytesDone int64
	Err       error
}

func (Progress) transferEvent() {}
func (Finished) transferEvent() {}
