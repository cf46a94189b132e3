package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/api/dto"
	"github.com/spec-kit/sms-desk/internal/domain"
	"github.com/spec-kit/sms-desk/internal/service"
)

// DashboardHandler serves the agent-facing HTML views.
type DashboardHandler struct {
	service *service.TicketService
	logger  *zap.Logger
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(ticketService *service.TicketService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: ticketService, logger: logger}
}

// Dashboard GET /admin.
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	views, err := h.service.ListOpenTickets(c.UserContext())
	if err != nil {
		h.logger.Error("open tickets unavailable", zap.Error(err))
		return c.Render("admin", fiber.Map{
			"Error": "Ticket store unavailable, showing no tickets.",
		})
	}
	return c.Render("admin", fiber.Map{
		"Tickets": views,
	})
}

// Reply POST /reply. Redirects back to the dashboard whether the reply was
// applied or dropped; an unknown ticket id is a tolerated no-op.
func (h *DashboardHandler) Reply(c *fiber.Ctx) error {
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("reply form rejected", zap.Error(err))
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Content) == "" {
		h.logger.Warn("reply form missing id or content")
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}

	if err := h.service.Reply(c.UserContext(), req.ID, req.Content); err != nil {
		if !errors.Is(err, domain.ErrTicketNotFound) {
			h.logger.Error("reply not persisted", zap.String("ticket_id", req.ID), zap.Error(err))
		}
	}
	return c.Redirect("/admin", fiber.StatusSeeOther)
}

// Close POST /admin/tickets/:id/close.
func (h *DashboardHandler) Close(c *fiber.Ctx) error {
	if err := h.service.CloseTicket(c.UserContext(), c.Params("id"), "agent"); err != nil {
		if !errors.Is(err, domain.ErrTicketNotFound) {
			h.logger.Error("ticket not closed", zap.String("ticket_id", c.Params("id")), zap.Error(err))
		}
	}
	return c.Redirect("/admin", fiber.StatusSeeOther)
}
