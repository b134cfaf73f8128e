package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-chat/internal/events"
	"github.com/spec-kit/ticket-chat/internal/observability"
)

// Dispatcher drives the active phase of a session: it persists each inbound
// message, then fans it out to the other live sessions of the same ticket.
//
// A persistence failure is reported to the sender only and leaves the
// session active so the client can retry. Delivery is best-effort and
// at-most-once per peer: saturated peers miss the frame and catch up via
// the history endpoint.
type Dispatcher struct {
	store    MessageStore
	registry *Registry
	events   events.Dispatcher
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewDispatcher builds the dispatcher.
func NewDispatcher(store MessageStore, registry *Registry, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		events:   dispatcher,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleInbound processes one inbound message body from an active session.
func (d *Dispatcher) HandleInbound(ctx context.Context, sess *Session, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}

	msg, err := d.store.Append(ctx, sess.TicketID(), sess.UserID(), body)
	if err != nil {
		d.logger.Warn("message append failed",
			zap.String("ticket_id", sess.TicketID()),
			zap.String("session_id", sess.ID()),
			zap.Error(err),
		)
		sess.Deliver(ErrorFrame(ReasonStoreUnavailable, "message was not persisted, retry"))
		return
	}
	msg.SenderName = sess.UserName()

	frame := MessageFrame(msg)
	for _, peer := range d.registry.Peers(sess.TicketID()) {
		if peer == sess {
			continue
		}
		if !peer.Deliver(frame) {
			d.metrics.RecordDroppedFrame()
			d.logger.Warn("dropped frame for saturated peer",
				zap.String("ticket_id", sess.TicketID()),
				zap.String("peer_session_id", peer.ID()),
				zap.Int64("seq", msg.Seq),
			)
		}
	}

	if sess.Echo() {
		sess.Deliver(frame)
	} else {
		sess.Deliver(AckFrame(msg))
	}
	d.metrics.RecordBroadcast()

	d.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventChatMessageSent,
		TicketID:  msg.TicketID,
		UserID:    msg.SenderID,
		Timestamp: time.Now(),
		Payload: events.ChatMessageSentPayload{
			Seq:         msg.Seq,
			BodyPreview: preview(msg.Body, 80),
		},
	})
}

func (d *Dispatcher) publish(ctx context.Context, event events.Event) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, event); err != nil {
		d.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// preview truncates at a rune boundary so event payloads stay valid UTF-8.
func preview(body string, max int) string {
	if len(body) <= max {
		return body
	}
	for max > 0 && !utf8.RuneStart(body[max]) {
		max--
	}
	return body[:max]
}
