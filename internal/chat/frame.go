package chat

import (
	"time"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

// Frame types sent to clients. Inbound traffic is plain text: the payload
// of a text websocket message is the message body.
const (
	FrameTypeMessage = "message"
	FrameTypeAck     = "ack"
	FrameTypeError   = "error"
)

// Machine-readable reason codes carried on error frames and terminal closures.
const (
	ReasonInvalidCredential = "INVALID_CREDENTIAL"
	ReasonExpired           = "EXPIRED"
	ReasonForbidden         = "FORBIDDEN"
	ReasonNotFound          = "NOT_FOUND"
	ReasonStoreUnavailable  = "STORE_UNAVAILABLE"
	ReasonServerShutdown    = "SERVER_SHUTDOWN"
)

// Frame is the server-to-client wire envelope.
type Frame struct {
	Type  string       `json:"type"`
	Data  *MessageData `json:"data,omitempty"`
	Error *FrameError  `json:"error,omitempty"`
}

// MessageData carries a stored message. Ack frames reuse it with only the
// ordering fields set so the sender learns the assigned seq and timestamp.
type MessageData struct {
	ID         int64     `json:"id,omitempty"`
	TicketID   string    `json:"ticket_id,omitempty"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Seq        int64     `json:"seq"`
	Body       string    `json:"body,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FrameError is the error payload, distinguishable from a normal message.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessageFrame wraps a stored message for fanout.
func MessageFrame(msg *domain.Message) Frame {
	return Frame{
		Type: FrameTypeMessage,
		Data: &MessageData{
			ID:         msg.ID,
			TicketID:   msg.TicketID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Seq:        msg.Seq,
			Body:       msg.Body,
			CreatedAt:  msg.CreatedAt,
		},
	}
}

// AckFrame confirms persistence to the sender without echoing the body.
func AckFrame(msg *domain.Message) Frame {
	return Frame{
		Type: FrameTypeAck,
		Data: &MessageData{
			Seq:       msg.Seq,
			CreatedAt: msg.CreatedAt,
		},
	}
}

// ErrorFrame builds an error frame with a reason code.
func ErrorFrame(code, message string) Frame {
	return Frame{
		Type:  FrameTypeError,
		Error: &FrameError{Code: code, Message: message},
	}
}
