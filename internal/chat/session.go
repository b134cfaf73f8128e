package chat

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionState tracks a connection through its lifecycle.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateAuthorizing
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorizing:
		return "authorizing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one live connection of one user to one ticket. A user may hold
// several sessions on the same ticket (multiple devices); each is tracked
// independently. Sessions are never persisted.
//
// A session is created at upgrade time in StateConnecting and walks
// authenticating and authorizing; Bind attaches the resolved identity
// before the session is registered and turns active.
//
// The send queue is bounded: Deliver drops frames when the queue is full so
// a slow peer cannot stall fanout to others.
type Session struct {
	id       string
	ticketID string
	userID   string
	userName string
	echo     bool

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
}

// NewSession creates a session with a bounded outbound queue.
func NewSession(ticketID string, echo bool, bufferSize int) *Session {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	s := &Session{
		id:       uuid.NewString(),
		ticketID: ticketID,
		echo:     echo,
		send:     make(chan Frame, bufferSize),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// Bind attaches the authenticated identity. Called exactly once, after
// credential resolution and before Register makes the session visible to
// other goroutines.
func (s *Session) Bind(userID, userName string) {
	s.userID = userID
	s.userName = userName
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TicketID returns the ticket the session is bound to.
func (s *Session) TicketID() string { return s.ticketID }

// UserID returns the authenticated user.
func (s *Session) UserID() string { return s.userID }

// UserName returns the display name attached at join time.
func (s *Session) UserName() string { return s.userName }

// Echo reports whether the client opted in to receive its own messages
// back instead of a bare ack.
func (s *Session) Echo() bool { return s.echo }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Transition moves the session to the given state.
func (s *Session) Transition(state SessionState) {
	s.state.Store(int32(state))
}

// Deliver queues a frame without blocking. It reports false when the
// session is closed or its queue is saturated; the frame is dropped and
// the client recovers via the history endpoint.
func (s *Session) Deliver(frame Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound exposes the delivery queue to the write pump.
func (s *Session) Outbound() <-chan Frame { return s.send }

// Done is closed exactly once when the session shuts down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close marks the session closing. Safe to call from any goroutine and
// idempotent; the registry entry is removed separately by Unregister.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Transition(StateClosing)
		close(s.done)
	})
}
