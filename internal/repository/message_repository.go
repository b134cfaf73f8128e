package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-chat/internal/domain"
)

// MessageRepository manages the per-ticket message log. The store owns
// ordering: seq and created_at are assigned here, never by clients.
type MessageRepository interface {
	// Append persists a message with the next seq for the ticket. Callers
	// must serialize appends per ticket; UNIQUE(ticket_id, seq) backstops
	// the invariant at the schema level.
	Append(ctx context.Context, ticketID, senderID, body string) (*domain.Message, error)
	// History returns messages ordered by (created_at, seq), strictly after
	// the afterSeq cursor. A zero cursor reads from the beginning.
	History(ctx context.Context, ticketID string, afterSeq int64, limit int) ([]domain.Message, error)
	Summary(ctx context.Context, ticketID string) (MessageSummary, error)
}

// MessageSummary aggregates a ticket conversation for reporting.
type MessageSummary struct {
	Count int64
	First time.Time
	Last  time.Time
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds the repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Append(ctx context.Context, ticketID, senderID, body string) (*domain.Message, error) {
	const query = `
        INSERT INTO messages (ticket_id, sender_id, seq, body)
        VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE ticket_id=$1), $3)
        RETURNING id, seq, created_at`

	msg := &domain.Message{
		TicketID: ticketID,
		SenderID: senderID,
		Body:     body,
	}
	if err := r.pool.QueryRow(ctx, query, ticketID, senderID, body).Scan(
		&msg.ID,
		&msg.Seq,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepository) History(ctx context.Context, ticketID string, afterSeq int64, limit int) ([]domain.Message, error) {
	const query = `
        SELECT m.id, m.ticket_id, m.sender_id, u.name, m.seq, m.body, m.created_at
        FROM messages m JOIN users u ON u.id = m.sender_id
        WHERE m.ticket_id=$1 AND m.seq > $2
        ORDER BY m.created_at ASC, m.seq ASC
        LIMIT $3`

	rows, err := r.pool.Query(ctx, query, ticketID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Seq,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) Summary(ctx context.Context, ticketID string) (MessageSummary, error) {
	const query = `
        SELECT COUNT(*), COALESCE(MIN(created_at), 'epoch'::timestamptz), COALESCE(MAX(created_at), 'epoch'::timestamptz)
        FROM messages WHERE ticket_id=$1`

	var summary MessageSummary
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&summary.Count,
		&summary.First,
		&summary.Last,
	); err != nil {
		return MessageSummary{}, err
	}
	return summary, nil
}
