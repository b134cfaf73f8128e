package dto

import (
	"time"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

// MessageResponse is the public projection of a stored message.
type MessageResponse struct {
	ID         int64     `json:"id"`
	TicketID   string    `json:"ticket_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Seq        int64     `json:"seq"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessageListResponse maps history messages.
func NewMessageListResponse(messages []domain.Message) []MessageResponse {
	result := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		result = append(result, MessageResponse{
			ID:         msg.ID,
			TicketID:   msg.TicketID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Seq:        msg.Seq,
			Body:       msg.Body,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return result
}
