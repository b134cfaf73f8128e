package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests. A ticket has exactly one
// creator; the assignee is optional and mutable.
type Ticket struct {
	ID          string
	CreatorID   string
	AssigneeID  *string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsParticipant reports whether the user may take part in the ticket
// conversation: creator and assignee only, no role bypass.
func (t *Ticket) IsParticipant(userID string) bool {
	if t.CreatorID == userID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == userID
}
