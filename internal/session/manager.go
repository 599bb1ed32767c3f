// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package session owns the concurrent connection "tabs". The manager keeps
// an arena of session records addressed by stable id; a session is removed
// only after its background tasks (terminal pump, transfers) have observably
// finished, so nothing ever dangles.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ferryman-ssh/ferryman/internal/model"
	"github.com/ferryman-ssh/ferryman/internal/sshx"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrNotReady is returned when an operation needs a Ready session.
	ErrNotReady = errors.New("session not ready")
	// ErrChannelBusy is returned when a session already has a live
	// terminal channel. The existing channel is unaffected.
	ErrChannelBusy = errors.New("terminal channel busy")
	// ErrTransferBusy is returned when a session already runs a transfer.
	ErrTransferBusy = errors.New("transfer already active on session")
	// ErrRemoteClosed reports a terminal channel torn down by the peer.
	ErrRemoteClosed = errors.New("remote closed channel")
)

const (
	pumpBufferSize  = 4096
	eventBufferSize = 1024
)

// UsageRecorder receives the outcome of connection attempts; the connection
// store implements it to drive recency ordering.
type UsageRecorder interface {
	RecordUsed(id string, ok bool) error
}

// TransferCanceller lets the manager cancel in-flight transfers on a
// session before tearing it down. The transfer engine implements it;
// CancelForSession must not return before the job has reached a terminal
// outcome.
type TransferCanceller interface {
	CancelForSession(sessionID string)
}

// Session is one authenticated connection and its channels. All fields
// behind mu; the exported fields are immutable after creation.
type Session struct {
	ID     string
	Record model.ConnectionRecord

	mu       sync.Mutex
	state    State
	conn     sshx.Conn
	term     sshx.PtyChannel
	sftp     sshx.SftpChannel
	pumpDone chan struct{}
}

// Info is a read-only snapshot for the presentation layer.
type Info struct {
	ID       string
	RecordID string
	Label    string
	State    State
}

// Manager owns every session. Sessions are independent; the manager also
// tracks the single foregrounded session that receives keystrokes.
type Manager struct {
	dialer    sshx.Dialer
	recorder  UsageRecorder
	canceller TransferCanceller
	log       *zap.Logger

	mu         sync.Mutex
	sessions   map[string]*Session
	order      []string
	foreground string

	// emitMu serializes event emission so per-session issue order is
	// preserved on the events channel.
	emitMu sync.Mutex
	events chan Event
}

// NewManager builds a manager over the given dialer. recorder and log may
// not be nil; pass a nop logger when logging is unwanted.
func NewManager(dialer sshx.Dialer, recorder UsageRecorder, log *zap.Logger) *Manager {
	return &Manager{
		dialer:   dialer,
		recorder: recorder,
		log:      log,
		sessions: make(map[string]*Session),
		events:   make(chan Event, eventBufferSize),
	}
}

// SetTransferCanceller wires the transfer engine in after construction;
// manager and engine reference each other, so one side has to be late-bound.
func (m *Manager) SetTransferCanceller(c TransferCanceller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceller = c
}

// Events returns the presentation-facing event stream. The consumer must
// keep draining it for the lifetime of the manager.
func (m *Manager) Events() <-chan Event { return m.events }

// Connect dials and authenticates a new session for the record. It blocks
// until the connection is established or failed; callers run it off the
// interactive path. On success the new session becomes the foreground one
// and the attempt is recorded for recency ordering.
func (m *Manager) Connect(record model.ConnectionRecord) (string, error) {
	s := &Session{
		ID:     model.NewRecordID(),
		Record: record,
		state:  StateIdle,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	m.mu.Unlock()

	m.setState(s, StateConnecting, "")
	m.setState(s, StateAuthenticating, "")

	conn, err := m.dialer.Dial(record.Host, record.Port, record.User, record.Credential)
	if err != nil {
		m.recordUsage(record.ID, false)
		m.fail(s, err)
		return s.ID, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	m.setState(s, StateReady, "")
	m.recordUsage(record.ID, true)

	m.mu.Lock()
	m.foreground = s.ID
	m.mu.Unlock()
	return s.ID, nil
}

// OpenTerminal requests a PTY channel sized to the current viewport and
// starts the byte pump. A second request on a session with a live terminal
// channel fails with ErrChannelBusy and leaves the existing channel alone.
func (m *Manager) OpenTerminal(sessionID string, cols, rows int) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.term != nil {
		s.mu.Unlock()
		return ErrChannelBusy
	}
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotReady, state)
	}
	conn := s.conn
	s.mu.Unlock()

	term, err := conn.OpenPty(cols, rows)
	if err != nil {
		return fmt.Errorf("open terminal channel: %w", err)
	}

	s.mu.Lock()
	if s.term != nil {
		// Lost the race to another opener; keep the winner's channel.
		s.mu.Unlock()
		_ = term.Close()
		return ErrChannelBusy
	}
	s.term = term
	s.pumpDone = make(chan struct{})
	done := s.pumpDone
	s.mu.Unlock()

	m.setState(s, StateTerminal, "")
	go m.pump(s, term, done)
	return nil
}

// pump moves remote bytes to the event stream until the channel ends. It is
// the only reader of the terminal channel, so output order is preserved.
func (m *Manager) pump(s *Session, term sshx.PtyChannel, done chan struct{}) {
	defer close(done)
	buf := make([]byte, pumpBufferSize)
	for {
		n, err := term.Read(buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			m.emit(TerminalOutput{SessionID: s.ID, Data: out})
		}
		if err == nil {
			continue
		}

		s.mu.Lock()
		closing := s.state == StateClosing || s.state == StateClosed
		wasTerminal := s.state == StateTerminal
		s.term = nil
		s.mu.Unlock()

		switch {
		case closing:
			// Teardown initiated locally; CloseSession owns the channel
			// and the transitions.
		case errors.Is(err, io.EOF):
			// Remote shell exited; release the channel so the session is
			// reusable without leaking the underlying stream.
			if err := term.Close(); err != nil {
				m.logEvent("terminal close failed", zap.String("session_id", s.ID), zap.Error(err))
			}
			m.logEvent("terminal closed", zap.String("session_id", s.ID))
			if wasTerminal {
				m.setState(s, StateReady, "")
			}
		default:
			if err := term.Close(); err != nil {
				m.logEvent("terminal close failed", zap.String("session_id", s.ID), zap.Error(err))
			}
			m.fail(s, fmt.Errorf("%w: %v", ErrRemoteClosed, err))
		}
		return
	}
}

// RouteKeystrokes delivers keystrokes to the foregrounded session's live
// terminal channel. Keystrokes are never broadcast: with no foreground
// session or no open channel they are dropped.
func (m *Manager) RouteKeystrokes(data []byte) error {
	m.mu.Lock()
	s := m.sessions[m.foreground]
	m.mu.Unlock()
	if s == nil {
		return nil
	}

	s.mu.Lock()
	term := s.term
	s.mu.Unlock()
	if term == nil {
		return nil
	}
	if _, err := term.Write(data); err != nil {
		return fmt.Errorf("write keystrokes: %w", err)
	}
	return nil
}

// Resize forwards a window-change request on the open terminal channel; it
// is a no-op when none is open.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	term := s.term
	s.mu.Unlock()
	if term == nil {
		return nil
	}
	return term.Resize(cols, rows)
}

// BeginTransfer marks the session as transferring and lends out its SFTP
// channel. The channel is owned by the manager and returned via EndTransfer
// when the job reaches a terminal outcome.
func (m *Manager) BeginTransfer(sessionID string) (sshx.SftpChannel, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateTransferring {
		s.mu.Unlock()
		return nil, ErrTransferBusy
	}
	// A live terminal channel does not block a transfer; the two channels
	// are owned independently.
	if s.state != StateReady && s.state != StateTerminal {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrNotReady, state)
	}
	conn := s.conn
	s.mu.Unlock()

	sftp, err := conn.OpenSftp()
	if err != nil {
		return nil, fmt.Errorf("open sftp channel: %w", err)
	}

	s.mu.Lock()
	s.sftp = sftp
	s.mu.Unlock()
	m.setState(s, StateTransferring, "")
	return sftp, nil
}

// EndTransfer returns the borrowed SFTP channel and moves the session back
// to Ready (unless it failed or is closing in the meantime).
func (m *Manager) EndTransfer(sessionID string) {
	s, err := m.get(sessionID)
	if err != nil {
		return
	}
	s.mu.Lock()
	sftp := s.sftp
	s.sftp = nil
	wasTransferring := s.state == StateTransferring
	termOpen := s.term != nil
	s.mu.Unlock()

	if sftp != nil {
		if err := sftp.Close(); err != nil {
			m.logEvent("sftp close failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	if wasTransferring {
		if termOpen {
			m.setState(s, StateTerminal, "")
		} else {
			m.setState(s, StateReady, "")
		}
	}
}

// CloseSession tears a session down: cancel any in-flight transfer, close
// the terminal channel, then the connection, in that order, so nothing
// writes to a half-closed channel. Teardown I/O failures are logged, never
// surfaced; the session always reaches Closed and leaves the arena.
func (m *Manager) CloseSession(sessionID string) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	// A failed session goes straight to Closed; Closing is only announced
	// for sessions torn down from a live state.
	s.mu.Lock()
	failed := s.state == StateFailed
	s.mu.Unlock()
	if !failed {
		m.setState(s, StateClosing, "")
	}

	m.mu.Lock()
	canceller := m.canceller
	m.mu.Unlock()
	if canceller != nil {
		canceller.CancelForSession(sessionID)
	}

	s.mu.Lock()
	term := s.term
	done := s.pumpDone
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if term != nil {
		if err := term.Close(); err != nil {
			m.logEvent("terminal close failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		if done != nil {
			<-done
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logEvent("connection close failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	m.setState(s, StateClosed, "")
	m.remove(sessionID)
	return nil
}

// CloseAll closes every session; used on quit.
func (m *Manager) CloseAll() {
	for _, info := range m.Sessions() {
		_ = m.CloseSession(info.ID)
	}
}

// Sessions returns arena snapshots in creation order.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		s := m.sessions[id]
		if s == nil {
			continue
		}
		s.mu.Lock()
		out = append(out, Info{
			ID:       s.ID,
			RecordID: s.Record.ID,
			Label:    s.Record.Label(),
			State:    s.state,
		})
		s.mu.Unlock()
	}
	return out
}

// State returns the current state of a session.
func (m *Manager) State(sessionID string) (State, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return StateClosed, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// SetForeground selects the session that receives keystrokes.
func (m *Manager) SetForeground(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	m.foreground = sessionID
	return nil
}

// ForegroundID returns the id of the foregrounded session, or "".
func (m *Manager) ForegroundID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.foreground
}

// Record returns the connection record a session was opened from.
func (m *Manager) Record(sessionID string) (model.ConnectionRecord, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return model.ConnectionRecord{}, err
	}
	return s.Record, nil
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s, nil
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	for i, id := range m.order {
		if id == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.foreground == sessionID {
		m.foreground = ""
		if len(m.order) > 0 {
			m.foreground = m.order[len(m.order)-1]
		}
	}
}

// fail marks a session Failed and then Closed-reachable; the session stays
// in the arena until CloseSession so the presentation layer can show the
// reason.
func (m *Manager) fail(s *Session, reason error) {
	m.setState(s, StateFailed, reason.Error())
}

// setState performs a transition and emits it. The emit lock keeps events
// for one session in issue order on the shared channel.
func (m *Manager) setState(s *Session, next State, reason string) {
	s.mu.Lock()
	if s.state.isTerminal() {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	m.logEvent("session state changed",
		zap.String("session_id", s.ID),
		zap.String("record_id", s.Record.ID),
		zap.String("state", next.String()),
		zap.String("reason", reason),
	)
	m.emit(StateChanged{SessionID: s.ID, State: next, Reason: reason})
}

func (m *Manager) emit(ev Event) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	m.events <- ev
}

func (m *Manager) recordUsage(recordID string, ok bool) {
	if m.recorder == nil || recordID == "" {
		return
	}
	if err := m.recorder.RecordUsed(recordID, ok); err != nil {
		m.logEvent("record usage failed", zap.String("record_id", recordID), zap.Error(err))
	}
}

func (m *Manager) logEvent(msg string, fields ...zap.Field) {
	if m.log != nil {
		m.log.Info(msg, fields...)
	}
}
