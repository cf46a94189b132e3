package domain

import "time"

// MessageDirection indicates which way a message travelled.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "IN"
	DirectionOutbound MessageDirection = "OUT"
)

// TicketMessage is one text within a ticket's thread. Messages are
// append-only; the store assigns a monotonically increasing ID so insertion
// order is stable regardless of clock resolution.
type TicketMessage struct {
	ID        int64
	TicketID  string
	Direction MessageDirection
	Content   string
	CreatedAt time.Time
}
