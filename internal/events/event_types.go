package events

import (
	"time"

	"github.com/spec-kit/sms-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketMessageAdded EventType = "ticket_message_added"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketReopened     EventType = "ticket_reopened"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerNumber string `json:"customer_number"`
	ShortID        string `json:"short_id"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   int64                   `json:"message_id"`
	Direction   domain.MessageDirection `json:"direction"`
	BodyPreview string                  `json:"body_preview"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Actor string `json:"actor"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	Direction domain.MessageDirection `json:"direction"`
}
