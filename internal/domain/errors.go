package domain

import "errors"

var (
	// ErrTicketNotFound is returned when no ticket matches the given key.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrDuplicateNumber is returned when a create collides with an existing
	// ticket for the same customer number. The service treats this as losing
	// the first-contact race and retries as an append.
	ErrDuplicateNumber = errors.New("ticket already exists for customer number")
)
