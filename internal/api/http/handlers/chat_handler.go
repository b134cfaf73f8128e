package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-chat/internal/auth"
	"github.com/spec-kit/ticket-chat/internal/chat"
	"github.com/spec-kit/ticket-chat/internal/config"
	"github.com/spec-kit/ticket-chat/internal/events"
	"github.com/spec-kit/ticket-chat/internal/observability"
	"github.com/spec-kit/ticket-chat/internal/repository"
)

// ChatHandler serves the live session endpoint /ws/ticket/:id.
//
// Connection lifecycle: upgrade, resolve the credential, authorize against
// ticket ownership, register, then pump frames until the client leaves, the
// transport fails or the server shuts down. Rejected joins receive an error
// frame with a reason code before the connection closes; unregister runs on
// every exit path.
type ChatHandler struct {
	tokens     *auth.TokenManager
	users      repository.UserRepository
	gate       *chat.Gate
	registry   *chat.Registry
	dispatcher *chat.Dispatcher
	events     events.Dispatcher
	cfg        config.ChatConfig
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ChatDependencies bundles collaborators for the chat handler.
type ChatDependencies struct {
	Tokens     *auth.TokenManager
	Users      repository.UserRepository
	Gate       *chat.Gate
	Registry   *chat.Registry
	Dispatcher *chat.Dispatcher
	Events     events.Dispatcher
	Config     config.ChatConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewChatHandler constructs handler.
func NewChatHandler(deps ChatDependencies) *ChatHandler {
	return &ChatHandler{
		tokens:     deps.Tokens,
		users:      deps.Users,
		gate:       deps.Gate,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		cfg:        deps.Config,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Upgrade guards the endpoint: only websocket upgrade requests pass through.
func (h *ChatHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve returns the websocket handler.
func (h *ChatHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		h.serve(conn)
	})
}

func (h *ChatHandler) serve(conn *websocket.Conn) {
	defer conn.Close()
	ctx := context.Background()

	ticketID := conn.Params("id")
	token := conn.Query("token")
	echo := conn.Query("echo") == "1"

	sess := chat.NewSession(ticketID, echo, h.cfg.SendBufferSize)

	sess.Transition(chat.StateAuthenticating)
	userID, err := h.tokens.Resolve(token)
	if err != nil {
		reason := chat.ReasonInvalidCredential
		if errors.Is(err, auth.ErrExpired) {
			reason = chat.ReasonExpired
		}
		h.reject(conn, reason, "credential rejected")
		return
	}
	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.reject(conn, chat.ReasonNotFound, "user not found")
		} else {
			h.reject(conn, chat.ReasonStoreUnavailable, "user lookup failed")
		}
		return
	}

	sess.Transition(chat.StateAuthorizing)
	if _, err := h.gate.Authorize(ctx, user.ID, ticketID); err != nil {
		switch {
		case errors.Is(err, chat.ErrForbidden):
			h.reject(conn, chat.ReasonForbidden, "not a ticket participant")
		case errors.Is(err, chat.ErrTicketNotFound):
			h.reject(conn, chat.ReasonNotFound, "ticket not found")
		default:
			h.reject(conn, chat.ReasonStoreUnavailable, "ticket lookup failed")
		}
		return
	}

	sess.Bind(user.ID, user.Name)
	h.registry.Register(ticketID, sess)
	sess.Transition(chat.StateActive)
	h.metrics.SessionOpened()
	h.publishLifecycle(ctx, events.EventChatSessionJoined, sess)

	defer func() {
		sess.Close()
		h.registry.Unregister(ticketID, sess)
		sess.Transition(chat.StateClosed)
		h.metrics.SessionClosed()
		h.publishLifecycle(ctx, events.EventChatSessionLeft, sess)
	}()

	go h.writePump(conn, sess)
	h.readPump(ctx, conn, sess)
}

// readPump consumes inbound text messages until the transport drops or the
// session closes. Closing the underlying conn (from writePump or shutdown)
// unblocks the pending read.
func (h *ChatHandler) readPump(ctx context.Context, conn *websocket.Conn, sess *chat.Session) {
	if h.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(h.cfg.ReadLimitBytes)
	}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatcher.HandleInbound(ctx, sess, string(data))
	}
}

// writePump drains the session queue onto the wire and keeps the
// connection alive with pings. On exit it closes the conn so the read
// pump terminates too.
func (h *ChatHandler) writePump(conn *websocket.Conn, sess *chat.Session) {
	ticker := time.NewTicker(h.cfg.PingInterval())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-sess.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
			if err := conn.WriteJSON(frame); err != nil {
				sess.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		case <-sess.Done():
			// drain frames already queued before the close was observed
			for {
				select {
				case frame := <-sess.Outbound():
					_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
					if err := conn.WriteJSON(frame); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// reject sends a terminal error frame with a machine-readable reason code
// before the connection closes. No data is exchanged for rejected joins.
func (h *ChatHandler) reject(conn *websocket.Conn, code, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
	_ = conn.WriteJSON(chat.ErrorFrame(code, message))
	h.logger.Info("chat join rejected",
		zap.String("ticket_id", conn.Params("id")),
		zap.String("reason", code),
	)
}

func (h *ChatHandler) publishLifecycle(ctx context.Context, eventType events.EventType, sess *chat.Session) {
	if h.events == nil {
		return
	}
	_ = h.events.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  sess.TicketID(),
		UserID:    sess.UserID(),
		Timestamp: time.Now(),
		Payload:   events.ChatSessionPayload{SessionID: sess.ID()},
	})
}
