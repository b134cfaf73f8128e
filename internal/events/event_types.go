package events

import (
	"time"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventChatSessionJoined EventType = "chat_session_joined"
	EventChatSessionLeft   EventType = "chat_session_left"
	EventChatMessageSent   EventType = "chat_message_sent"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// ChatSessionPayload payload for join/leave events.
type ChatSessionPayload struct {
	SessionID string `json:"session_id"`
}

// ChatMessageSentPayload payload.
type ChatMessageSentPayload struct {
	Seq         int64  `json:"seq"`
	BodyPreview string `json:"body_preview"`
}
