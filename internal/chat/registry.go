package chat

import (
	"sync"

	"go.uber.org/zap"
)

// Registry tracks live sessions grouped by ticket. State is partitioned:
// each ticket gets its own room with its own lock, so operations on one
// ticket never contend with another beyond the map lookup. Rooms are
// created lazily and pruned when their last session leaves.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	logger *zap.Logger
}

type room struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	// closed is set under mu when the room is pruned from the registry
	// map; a registration that raced the prune must take a fresh room.
	closed bool
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		logger: logger,
	}
}

// Register adds the session to its ticket's room. Once Register returns,
// any subsequent Peers call observes the session.
func (r *Registry) Register(ticketID string, sess *Session) {
	var count int
	for {
		r.mu.Lock()
		rm, ok := r.rooms[ticketID]
		if !ok {
			rm = &room{sessions: make(map[*Session]struct{})}
			r.rooms[ticketID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.closed {
			// a concurrent Unregister pruned this room between the map
			// lookup and here; it is unreachable from the map now, so a
			// session added to it would never be seen by Peers
			rm.mu.Unlock()
			continue
		}
		rm.sessions[sess] = struct{}{}
		count = len(rm.sessions)
		rm.mu.Unlock()
		break
	}

	r.logger.Info("chat session registered",
		zap.String("ticket_id", ticketID),
		zap.String("session_id", sess.ID()),
		zap.String("user_id", sess.UserID()),
		zap.Int("room_size", count),
	)
}

// Unregister removes the session. Idempotent: removing a session that
// already left is a no-op. Empty rooms are discarded.
func (r *Registry) Unregister(ticketID string, sess *Session) {
	r.mu.Lock()
	rm, ok := r.rooms[ticketID]
	r.mu.Unlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	_, present := rm.sessions[sess]
	if present {
		delete(rm.sessions, sess)
	}
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		// re-check under the map lock: a concurrent Register may have
		// repopulated the room between the two critical sections
		rm.mu.Lock()
		if len(rm.sessions) == 0 && r.rooms[ticketID] == rm {
			rm.closed = true
			delete(r.rooms, ticketID)
		}
		rm.mu.Unlock()
		r.mu.Unlock()
	}

	if present {
		r.logger.Info("chat session unregistered",
			zap.String("ticket_id", ticketID),
			zap.String("session_id", sess.ID()),
		)
	}
}

// Peers returns a snapshot of the sessions currently registered for the
// ticket. Sessions joining or leaving during a fanout may or may not see
// that exact broadcast; stably registered sessions see every message.
func (r *Registry) Peers(ticketID string) []*Session {
	r.mu.RLock()
	rm, ok := r.rooms[ticketID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	peers := make([]*Session, 0, len(rm.sessions))
	for sess := range rm.sessions {
		peers = append(peers, sess)
	}
	return peers
}

// Count returns the number of live sessions for a ticket.
func (r *Registry) Count(ticketID string) int {
	r.mu.RLock()
	rm, ok := r.rooms[ticketID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.sessions)
}

// Rooms returns the number of tickets with at least one live session.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CloseAll closes every session in every room. Used on server shutdown:
// closing a session unblocks its pumps, which unregister it on the way
// out, so the registry drains deterministically.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	closed := 0
	for _, rm := range rooms {
		rm.mu.Lock()
		for sess := range rm.sessions {
			sess.Close()
			closed++
		}
		rm.mu.Unlock()
	}
	r.logger.Info("closed all chat sessions", zap.Int("sessions", closed))
}
