package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-chat/internal/domain"
	"github.com/spec-kit/ticket-chat/internal/events"
	"github.com/spec-kit/ticket-chat/internal/repository"
	apperrors "github.com/spec-kit/ticket-chat/pkg/util"
)

// TicketService coordinates ticket workflows and the history read path.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	pageSize   int
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	PageSize    int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	AssigneeID  *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		pageSize:   pageSize,
	}
}

// CreateTicket creates a ticket for a user.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}

	if input.AssigneeID != nil {
		if _, err := s.users.GetByID(ctx, *input.AssigneeID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("assignee", map[string]any{"user_id": *input.AssigneeID})
			}
			return nil, err
		}
	}

	ticket := &domain.Ticket{
		CreatorID:   userID,
		AssigneeID:  input.AssigneeID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityNormal
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		ID:       uuid.NewString(),
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		UserID:   userID,
		Payload: events.TicketCreatedPayload{
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	return ticket, nil
}

// ListTickets returns tickets where the user is creator or assignee.
func (s *TicketService) ListTickets(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.tickets.ListForParticipant(ctx, userID)
}

// GetTicket fetches a ticket ensuring the caller participates in it.
func (s *TicketService) GetTicket(ctx context.Context, userID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if !ticket.IsParticipant(userID) {
		return nil, apperrors.NewForbidden("not authorized to view this ticket")
	}
	return ticket, nil
}

// AssignTicket sets or clears the assignee and marks the ticket in progress.
func (s *TicketService) AssignTicket(ctx context.Context, userID, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	if assigneeID != nil {
		if _, err := s.users.GetByID(ctx, *assigneeID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("assignee", map[string]any{"user_id": *assigneeID})
			}
			return nil, err
		}
	}
	if err := s.tickets.UpdateAssignee(ctx, ticketID, assigneeID); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusOpen && assigneeID != nil {
		if err := s.tickets.UpdateStatus(ctx, ticketID, domain.TicketStatusInProgress); err != nil {
			return nil, err
		}
	}
	s.publishEvent(ctx, events.Event{
		ID:       uuid.NewString(),
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		UserID:   userID,
		Payload:  events.TicketAssignedPayload{AssigneeID: assigneeID},
	})
	return s.tickets.GetByID(ctx, ticketID)
}

// History returns ticket messages after the given cursor, for reconnecting
// clients catching up on what they missed while offline.
func (s *TicketService) History(ctx context.Context, userID, ticketID string, afterSeq int64, limit int) ([]domain.Message, error) {
	if _, err := s.GetTicket(ctx, userID, ticketID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	return s.messages.History(ctx, ticketID, afterSeq, limit)
}

// Summarize produces a short textual digest of the ticket conversation.
func (s *TicketService) Summarize(ctx context.Context, userID, ticketID string) (string, error) {
	if _, err := s.GetTicket(ctx, userID, ticketID); err != nil {
		return "", err
	}
	summary, err := s.messages.Summary(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if summary.Count == 0 {
		return "No messages in this chat.", nil
	}
	return fmt.Sprintf("Chat has %d messages from %s to %s.",
		summary.Count,
		summary.First.Format("2006-01-02 15:04"),
		summary.Last.Format("2006-01-02 15:04"),
	), nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
