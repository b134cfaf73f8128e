package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-chat/internal/api/dto"
	"github.com/spec-kit/ticket-chat/internal/auth"
	"github.com/spec-kit/ticket-chat/internal/domain"
	"github.com/spec-kit/ticket-chat/internal/service"
	apperrors "github.com/spec-kit/ticket-chat/pkg/util"
)

// TicketsHandler exposes ticket CRUD, history, summary and presence.
type TicketsHandler struct {
	tickets  *service.TicketService
	presence *service.PresenceService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, presence *service.PresenceService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, presence: presence}
}

// List handles GET /api/tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}
	tickets, err := h.tickets.ListTickets(c.Context(), principal.User.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets)})
}

// Create handles POST /api/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}

	var req dto.TicketCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.CreateTicket(c.Context(), principal.User.ID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Get handles GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}
	ticket, err := h.tickets.GetTicket(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Assign handles PATCH /api/tickets/:id/assignee.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}
	var req dto.TicketAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	ticket, err := h.tickets.AssignTicket(c.Context(), principal.User.ID, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Messages handles GET /api/tickets/:id/messages. This is the recovery
// path for clients that missed live frames while disconnected.
func (h *TicketsHandler) Messages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}

	afterSeq, _ := strconv.ParseInt(c.Query("after_seq", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	messages, err := h.tickets.History(c.Context(), principal.User.ID, c.Params("id"), afterSeq, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageListResponse(messages)})
}

// Summary handles GET /api/tickets/:id/summary.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}
	summary, err := h.tickets.Summarize(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"summary": summary}})
}

// Presence handles GET /api/tickets/:id/presence.
func (h *TicketsHandler) Presence(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewInvalidCredential("not authenticated")
	}
	if _, err := h.tickets.GetTicket(c.Context(), principal.User.ID, c.Params("id")); err != nil {
		return err
	}

	participants, err := h.presence.Participants(c.Context(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	unread, _ := h.presence.Unread(c.Context(), c.Params("id"), principal.User.ID)

	return c.JSON(fiber.Map{"data": fiber.Map{
		"online": participants,
		"unread": unread,
	}})
}
