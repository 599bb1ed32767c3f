// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package session

// State is the lifecycle position of a session.
//
//	Idle → Connecting → Authenticating → Ready → {Terminal|Transferring} → Closing → Closed
//
// StateFailed is reachable from any non-terminal state and only leads to
// StateClosed.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateTerminal
	StateTransferring
	StateClosing
	StateClosed
	StateFailed
)

// String returns the lowercase state name used in logs and events.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateTerminal:
		return "terminal"
	case StateTransferring:
		return "transferring"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal states admit no further transitions except Failed → Closed.
func (s State) isTerminal() bool {
	return s == StateClosed
}
