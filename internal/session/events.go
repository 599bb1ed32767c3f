// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package session

// Event is a presentation-facing notification from the session manager.
// Events for one session are delivered in issue order; events across
// sessions may interleave.
type Event interface{ sessionEvent() }

// StateChanged reports a session state transition. Reason is set when the
// new state is StateFailed.
type StateChanged struct {
	SessionID string
	State     State
	Reason    string
}

// TerminalOutput carries raw bytes read from a session's terminal channel.
// No escape-code interpretation happens here; the presentation layer decides
// what to do with them.
type TerminalOutput struct {
	SessionID string
	Data      []byte
}

func (StateChanged) sessionEvent()   {}
func (TerminalOutput) sessionEvent() {}
