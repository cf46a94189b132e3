package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/api/dto"
	"github.com/spec-kit/sms-desk/internal/persistence"
	"github.com/spec-kit/sms-desk/internal/service"
)

const dedupeTTL = 24 * time.Hour

// WebhookHandler receives inbound SMS payloads from the external gateway.
// The gateway never parses responses, so every outcome is a 200 with an
// empty body; failures are only visible in logs.
type WebhookHandler struct {
	service *service.TicketService
	dedupe  *persistence.Redis
	logger  *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(ticketService *service.TicketService, dedupe *persistence.Redis, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: ticketService, dedupe: dedupe, logger: logger}
}

// Receive POST /webhook.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var req dto.WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("webhook payload rejected", zap.Error(err))
		return c.SendString("")
	}
	if strings.TrimSpace(req.Originator) == "" || strings.TrimSpace(req.Body) == "" {
		h.logger.Warn("webhook payload missing originator or body")
		return c.SendString("")
	}

	dedupeKey := ""
	if req.ID != "" {
		dedupeKey = "webhook:msg:" + req.ID
		fresh, err := h.dedupe.MarkSeen(c.UserContext(), dedupeKey, dedupeTTL)
		if err != nil {
			// Fail open: dropping a live message is worse than processing
			// a redelivery twice.
			h.logger.Warn("webhook dedupe unavailable", zap.Error(err))
			dedupeKey = ""
		} else if !fresh {
			h.logger.Info("webhook redelivery dropped", zap.String("message_id", req.ID))
			return c.SendString("")
		}
	}

	if err := h.service.ReceiveInbound(c.UserContext(), req.Originator, req.Body); err != nil {
		h.logger.Error("inbound message not persisted",
			zap.String("originator", req.Originator),
			zap.Error(err))
		// Release the dedupe key so the provider's redelivery is not
		// dropped; its retry is the only chance to recover the message.
		if dedupeKey != "" {
			if delErr := h.dedupe.Forget(c.UserContext(), dedupeKey); delErr != nil {
				h.logger.Warn("webhook dedupe key not released",
					zap.String("message_id", req.ID),
					zap.Error(delErr))
			}
		}
	}
	return c.SendString("")
}
