package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-chat/internal/events"
	"github.com/spec-kit/ticket-chat/internal/persistence"
	"github.com/spec-kit/ticket-chat/internal/repository"
)

// presenceStore is the narrow Redis surface the presence mirror needs.
// Keeping it an interface lets the event handlers run against a map in
// tests without a live server.
type presenceStore interface {
	AddMember(ctx context.Context, key, member string) error
	RemoveMember(ctx context.Context, key, member string) error
	IsMember(ctx context.Context, key, member string) (bool, error)
	Members(ctx context.Context, key string) ([]string, error)
	IncrField(ctx context.Context, key, field string, delta int64) (int64, error)
	DeleteField(ctx context.Context, key, field string) error
	GetField(ctx context.Context, key, field string) (int64, error)
	SetValue(ctx context.Context, key, value string) error
}

type redisPresenceStore struct {
	client *redis.Client
}

func (s *redisPresenceStore) AddMember(ctx context.Context, key, member string) error {
	return s.client.SAdd(ctx, key, member).Err()
}

func (s *redisPresenceStore) RemoveMember(ctx context.Context, key, member string) error {
	return s.client.SRem(ctx, key, member).Err()
}

func (s *redisPresenceStore) IsMember(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *redisPresenceStore) Members(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

func (s *redisPresenceStore) IncrField(ctx context.Context, key, field string, delta int64) (int64, error) {
	return s.client.HIncrBy(ctx, key, field, delta).Result()
}

func (s *redisPresenceStore) DeleteField(ctx context.Context, key, field string) error {
	return s.client.HDel(ctx, key, field).Err()
}

// GetField treats a missing hash field as zero; any other failure is a
// real transport error and is returned as such.
func (s *redisPresenceStore) GetField(ctx context.Context, key, field string) (int64, error) {
	count, err := s.client.HGet(ctx, key, field).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func (s *redisPresenceStore) SetValue(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// PresenceService mirrors live session membership into Redis so the HTTP
// surface can report who is in a ticket conversation without touching the
// in-process registry. It also keeps per-participant unread counters and a
// last-activity timestamp per ticket.
//
// A user may hold several sessions on the same ticket (multiple devices),
// so membership is tracked by a per-(ticket, user) session count: the user
// appears in the presence set while the count is above zero and is removed
// only when the last session leaves.
type PresenceService struct {
	store      presenceStore
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewPresenceService creates the service. A missing Redis client disables
// the mirror; handlers become no-ops and the getters report the outage.
func NewPresenceService(rdb *persistence.Redis, tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger) *PresenceService {
	var store presenceStore
	if rdb != nil && rdb.Client != nil {
		store = &redisPresenceStore{client: rdb.Client}
	}
	return &PresenceService{
		store:      store,
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to chat lifecycle events.
func (p *PresenceService) RegisterHandlers() {
	if p.dispatcher == nil {
		return
	}
	p.dispatcher.Subscribe(events.EventChatSessionJoined, p.handleJoined)
	p.dispatcher.Subscribe(events.EventChatSessionLeft, p.handleLeft)
	p.dispatcher.Subscribe(events.EventChatMessageSent, p.handleMessageSent)
}

// Participants returns the user ids currently connected to the ticket.
func (p *PresenceService) Participants(ctx context.Context, ticketID string) ([]string, error) {
	if p.store == nil {
		return nil, errors.New("presence store not configured")
	}
	return p.store.Members(ctx, presenceKey(ticketID))
}

// Unread returns the number of messages sent while the user was not connected.
func (p *PresenceService) Unread(ctx context.Context, ticketID, userID string) (int64, error) {
	if p.store == nil {
		return 0, errors.New("presence store not configured")
	}
	return p.store.GetField(ctx, unreadKey(ticketID), userID)
}

func (p *PresenceService) handleJoined(ctx context.Context, event events.Event) error {
	if p.store == nil {
		return nil
	}
	sessions, err := p.store.IncrField(ctx, sessionsKey(event.TicketID), event.UserID, 1)
	if err != nil {
		p.logger.Warn("presence join failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return err
	}
	if sessions == 1 {
		if err := p.store.AddMember(ctx, presenceKey(event.TicketID), event.UserID); err != nil {
			p.logger.Warn("presence add failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
			return err
		}
	}
	// joining on any device clears the backlog counter for this participant
	_ = p.store.DeleteField(ctx, unreadKey(event.TicketID), event.UserID)
	return nil
}

func (p *PresenceService) handleLeft(ctx context.Context, event events.Event) error {
	if p.store == nil {
		return nil
	}
	sessions, err := p.store.IncrField(ctx, sessionsKey(event.TicketID), event.UserID, -1)
	if err != nil {
		p.logger.Warn("presence leave failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return err
	}
	if sessions > 0 {
		// still connected on another device, presence unchanged
		return nil
	}
	_ = p.store.DeleteField(ctx, sessionsKey(event.TicketID), event.UserID)
	if err := p.store.RemoveMember(ctx, presenceKey(event.TicketID), event.UserID); err != nil {
		p.logger.Warn("presence remove failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return err
	}
	return nil
}

func (p *PresenceService) handleMessageSent(ctx context.Context, event events.Event) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.SetValue(ctx, activityKey(event.TicketID), time.Now().Format(time.RFC3339)); err != nil {
		p.logger.Warn("activity update failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
	}

	ticket, err := p.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	participants := []string{ticket.CreatorID}
	if ticket.AssigneeID != nil {
		participants = append(participants, *ticket.AssigneeID)
	}
	for _, userID := range participants {
		if userID == event.UserID {
			continue
		}
		online, err := p.store.IsMember(ctx, presenceKey(event.TicketID), userID)
		if err != nil || online {
			continue
		}
		if _, err := p.store.IncrField(ctx, unreadKey(event.TicketID), userID, 1); err != nil {
			p.logger.Warn("unread increment failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		}
	}
	return nil
}

func presenceKey(ticketID string) string {
	return fmt.Sprintf("chat:presence:%s", ticketID)
}

func sessionsKey(ticketID string) string {
	return fmt.Sprintf("chat:sessions:%s", ticketID)
}

func activityKey(ticketID string) string {
	return fmt.Sprintf("chat:activity:%s", ticketID)
}

func unreadKey(ticketID string) string {
	return fmt.Sprintf("chat:unread:%s", ticketID)
}
