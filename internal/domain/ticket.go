package domain

import "time"

// Ticket is the aggregate for one customer's support conversation. There is
// at most one ticket per customer number for the life of the system; the
// tickets table enforces this with a unique constraint.
type Ticket struct {
	ID             string
	CustomerNumber string
	Open           bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
