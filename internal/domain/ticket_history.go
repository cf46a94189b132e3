package domain

import "time"

// HistoryChangeType enumerates recorded lifecycle changes.
type HistoryChangeType string

const (
	ChangeTypeOpened   HistoryChangeType = "OPENED"
	ChangeTypeReopened HistoryChangeType = "REOPENED"
	ChangeTypeClosed   HistoryChangeType = "CLOSED"
)

// TicketHistory is an audit entry for a ticket lifecycle transition.
type TicketHistory struct {
	ID         string
	TicketID   string
	ChangeType HistoryChangeType
	Actor      string
	CreatedAt  time.Time
}
