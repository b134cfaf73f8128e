package chat

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

// MessageStore is the durable, ordered append-log the dispatcher writes to.
// Append assigns seq and timestamp; a message that fails to persist is
// never fanned out.
type MessageStore interface {
	Append(ctx context.Context, ticketID, senderID, body string) (*domain.Message, error)
	History(ctx context.Context, ticketID string, afterSeq int64, limit int) ([]domain.Message, error)
}

// TicketSource supplies ticket ownership data to the access gate. The
// repository layer satisfies it; the core treats tickets as read-only.
type TicketSource interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// orderedStore serializes Append per ticket so two concurrent appends to
// the same ticket never race on seq assignment, while appends to different
// tickets proceed independently. Lock entries are refcounted and removed
// when the last append for a ticket completes.
type orderedStore struct {
	inner MessageStore

	mu    sync.Mutex
	locks map[string]*ticketLock
}

type ticketLock struct {
	mu   sync.Mutex
	refs int
}

// NewOrderedStore wraps a MessageStore with per-ticket append serialization.
func NewOrderedStore(inner MessageStore) MessageStore {
	return &orderedStore{
		inner: inner,
		locks: make(map[string]*ticketLock),
	}
}

func (s *orderedStore) Append(ctx context.Context, ticketID, senderID, body string) (*domain.Message, error) {
	lock := s.acquire(ticketID)
	lock.mu.Lock()
	msg, err := s.inner.Append(ctx, ticketID, senderID, body)
	lock.mu.Unlock()
	s.release(ticketID, lock)
	return msg, err
}

func (s *orderedStore) History(ctx context.Context, ticketID string, afterSeq int64, limit int) ([]domain.Message, error) {
	return s.inner.History(ctx, ticketID, afterSeq, limit)
}

func (s *orderedStore) acquire(ticketID string) *ticketLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[ticketID]
	if !ok {
		lock = &ticketLock{}
		s.locks[ticketID] = lock
	}
	lock.refs++
	return lock
}

func (s *orderedStore) release(ticketID string, lock *ticketLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, ticketID)
	}
}
