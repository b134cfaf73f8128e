package domain

import "time"

// Message is a single chat entry in a ticket conversation.
//
// Seq is assigned by the message store inside the serialized append for the
// ticket and is strictly monotonic per ticket. CreatedAt is server-assigned,
// never client-supplied. Messages of a ticket are totally ordered by
// (CreatedAt, Seq); Seq breaks timestamp ties.
type Message struct {
	ID         int64
	TicketID   string
	SenderID   string
	SenderName string
	Seq        int64
	Body       string
	CreatedAt  time.Time
}
