package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/domain"
	"github.com/spec-kit/sms-desk/internal/events"
	"github.com/spec-kit/sms-desk/internal/gateway"
	"github.com/spec-kit/sms-desk/internal/repository"
	apperrors "github.com/spec-kit/sms-desk/pkg/util"
)

// TicketService threads inbound and outbound messages into tickets. It is the
// only writer of ticket state; all shared mutation goes through the
// repository's atomic operations, so the service keeps no ticket state of its
// own between calls.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	sender     gateway.Sender
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Sender      gateway.Sender
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketView is a ticket annotated for display.
type TicketView struct {
	Ticket   domain.Ticket
	ShortID  string
	Messages []domain.TicketMessage
	History  []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		sender:     deps.Sender,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// ReceiveInbound resolves an inbound SMS to exactly one ticket. An unknown
// number opens a new ticket seeded with the message and triggers the SMS
// confirmation; a known number appends to the existing ticket and reopens it.
// Confirmation delivery failure never rolls back the ticket mutation.
func (s *TicketService) ReceiveInbound(ctx context.Context, number, text string) error {
	number = strings.TrimSpace(number)
	if number == "" || strings.TrimSpace(text) == "" {
		return apperrors.NewValidationError("originator and body required", nil)
	}

	msg := &domain.TicketMessage{Direction: domain.DirectionInbound, Content: text}

	ticket, err := s.tickets.GetByNumber(ctx, number)
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		created, createErr := s.tickets.CreateWithMessage(ctx, number, msg)
		if errors.Is(createErr, domain.ErrDuplicateNumber) {
			// Lost the first-contact race; the winner's ticket takes the message.
			winner, findErr := s.tickets.GetByNumber(ctx, number)
			if findErr != nil {
				return findErr
			}
			return s.appendMessage(ctx, winner, msg)
		}
		if createErr != nil {
			return createErr
		}
		s.recordHistory(ctx, created.ID, domain.ChangeTypeOpened, "customer")
		s.sendConfirmation(ctx, created)
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: created.ID,
			Payload: events.TicketCreatedPayload{
				CustomerNumber: created.CustomerNumber,
				ShortID:        ShortTicketID(created.ID),
			},
		})
		return nil
	case err != nil:
		return err
	}

	return s.appendMessage(ctx, ticket, msg)
}

// Reply appends an agent reply to the ticket with the given full identifier
// and relays it to the customer. An unknown or malformed identifier leaves
// the store untouched and the gateway uninvoked.
func (s *TicketService) Reply(ctx context.Context, ticketID, content string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, domain.ErrTicketNotFound) {
		s.logger.Warn("reply to unknown ticket dropped", zap.String("ticket_id", ticketID))
		return err
	}
	if err != nil {
		return err
	}

	msg := &domain.TicketMessage{Direction: domain.DirectionOutbound, Content: content}
	if err := s.appendMessage(ctx, ticket, msg); err != nil {
		return err
	}

	// The outbound message is durable at this point; a failed relay is
	// reported but must not undo it.
	if _, sendErr := s.sender.Send(ctx, ticket.CustomerNumber, content); sendErr != nil {
		s.logger.Error("reply send failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("to", ticket.CustomerNumber),
			zap.Error(sendErr))
	}
	return nil
}

// ListOpenTickets returns all open tickets with their threads, annotated with
// short display identifiers.
func (s *TicketService) ListOpenTickets(ctx context.Context) ([]TicketView, error) {
	tickets, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		msgs, err := s.tickets.ListMessages(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, TicketView{
			Ticket:   ticket,
			ShortID:  ShortTicketID(ticket.ID),
			Messages: msgs,
		})
	}
	return views, nil
}

// GetTicket returns one ticket with its thread and lifecycle history.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.tickets.ListMessages(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	view := &TicketView{
		Ticket:   *ticket,
		ShortID:  ShortTicketID(ticket.ID),
		Messages: msgs,
	}
	if s.history != nil {
		history, err := s.history.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		view.History = history
	}
	return view, nil
}

// CloseTicket is the only transition to the closed state; neither message
// flow ever closes a ticket.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID, actor string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if !ticket.Open {
		return nil
	}
	if err := s.tickets.SetOpen(ctx, ticket.ID, false); err != nil {
		return err
	}
	s.recordHistory(ctx, ticket.ID, domain.ChangeTypeClosed, actor)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Payload:  events.TicketClosedPayload{Actor: actor},
	})
	return nil
}

func (s *TicketService) appendMessage(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) error {
	wasOpen := ticket.Open
	if err := s.tickets.AppendMessage(ctx, ticket.ID, msg, true); err != nil {
		return err
	}
	if !wasOpen {
		s.recordHistory(ctx, ticket.ID, domain.ChangeTypeReopened, actorForDirection(msg.Direction))
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketReopened,
			TicketID: ticket.ID,
			Payload:  events.TicketReopenedPayload{Direction: msg.Direction},
		})
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			Direction:   msg.Direction,
			BodyPreview: stringPreview(msg.Content, 120),
		},
	})
	return nil
}

func (s *TicketService) sendConfirmation(ctx context.Context, ticket *domain.Ticket) {
	text := fmt.Sprintf("Thanks for contacting customer support! Your ticket ID is %s.", ShortTicketID(ticket.ID))
	if _, err := s.sender.Send(ctx, ticket.CustomerNumber, text); err != nil {
		// The ticket is already durable; an undelivered confirmation is
		// reported, not rolled back.
		s.logger.Error("confirmation send failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("to", ticket.CustomerNumber),
			zap.Error(err))
	}
}

func (s *TicketService) recordHistory(ctx context.Context, ticketID string, change domain.HistoryChangeType, actor string) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: change,
		Actor:      actor,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history entry not recorded",
			zap.String("ticket_id", ticketID),
			zap.String("change", string(change)),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorForDirection(direction domain.MessageDirection) string {
	if direction == domain.DirectionOutbound {
		return "agent"
	}
	return "customer"
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
