package dto

import (
	"time"

	"github.com/spec-kit/sms-desk/internal/domain"
)

// WebhookRequest is the inbound SMS payload posted by the gateway. ID is the
// provider's message id, used only to drop redeliveries when present.
type WebhookRequest struct {
	ID         string `json:"id"`
	Originator string `json:"originator"`
	Body       string `json:"body"`
}

// ReplyRequest is the agent reply form submission.
type ReplyRequest struct {
	ID      string `json:"id" form:"id"`
	Content string `json:"content" form:"content"`
}

// MessageResponse is one thread entry.
type MessageResponse struct {
	Direction domain.MessageDirection `json:"direction"`
	Content   string                  `json:"content"`
	CreatedAt time.Time               `json:"created_at"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string            `json:"id"`
	ShortID        string            `json:"short_id"`
	CustomerNumber string            `json:"customer_number"`
	Open           bool              `json:"open"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Messages       []MessageResponse `json:"messages"`
}

// HistoryResponse is one lifecycle audit entry.
type HistoryResponse struct {
	ChangeType domain.HistoryChangeType `json:"change_type"`
	Actor      string                   `json:"actor"`
	CreatedAt  time.Time                `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	History []HistoryResponse `json:"history"`
}
