package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sms-desk/internal/api/dto"
	"github.com/spec-kit/sms-desk/internal/service"
)

// TicketsHandler exposes the JSON API over tickets.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListOpen GET /api/tickets.
func (h *TicketsHandler) ListOpen(c *fiber.Ctx) error {
	views, err := h.service.ListOpenTickets(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(views))
	for i := range views {
		items = append(items, ticketSummary(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	view, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

func ticketSummary(view *service.TicketView) dto.TicketSummary {
	messages := make([]dto.MessageResponse, 0, len(view.Messages))
	for _, msg := range view.Messages {
		messages = append(messages, dto.MessageResponse{
			Direction: msg.Direction,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return dto.TicketSummary{
		ID:             view.Ticket.ID,
		ShortID:        view.ShortID,
		CustomerNumber: view.Ticket.CustomerNumber,
		Open:           view.Ticket.Open,
		CreatedAt:      view.Ticket.CreatedAt,
		UpdatedAt:      view.Ticket.UpdatedAt,
		Messages:       messages,
	}
}

func ticketDetail(view *service.TicketView) dto.TicketDetailResponse {
	history := make([]dto.HistoryResponse, 0, len(view.History))
	for _, entry := range view.History {
		history = append(history, dto.HistoryResponse{
			ChangeType: entry.ChangeType,
			Actor:      entry.Actor,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(view),
		History:       history,
	}
}
