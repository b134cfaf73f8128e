package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

// Gate failures. Anything else returned by Authorize is a source error.
var (
	ErrForbidden      = errors.New("not a ticket participant")
	ErrTicketNotFound = errors.New("ticket not found")
)

// Gate decides whether a user may join the live session for a ticket.
// The rule is ownership only: creator or current assignee, no role bypass.
// The check runs at join time; a mid-session reassignment does not evict
// connected participants.
type Gate struct {
	tickets TicketSource
}

// NewGate builds the gate.
func NewGate(tickets TicketSource) *Gate {
	return &Gate{tickets: tickets}
}

// Authorize returns the ticket when the user may join, ErrForbidden when
// the user is neither creator nor assignee, ErrTicketNotFound when the
// ticket does not exist.
func (g *Gate) Authorize(ctx context.Context, userID, ticketID string) (*domain.Ticket, error) {
	ticket, err := g.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if !ticket.IsParticipant(userID) {
		return nil, ErrForbidden
	}
	return ticket, nil
}
