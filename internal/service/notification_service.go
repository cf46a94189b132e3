package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/config"
	"github.com/spec-kit/sms-desk/internal/events"
)

// NotificationService emits operator-facing notifications for domain events.
// Customer-facing SMS traffic is not event-driven; the ticket service sends
// it synchronously.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketReopened)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketMessageAdded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketClosed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketReopened(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketReopened", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
