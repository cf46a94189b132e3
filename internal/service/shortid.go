package service

import "strings"

const shortIDLength = 8

// ShortTicketID derives the human-shareable code for a ticket from its full
// identifier: the trailing hex characters of the UUID with hyphens removed,
// uppercased. It is display-only and never used as a lookup key; lookups
// always take the full identifier.
func ShortTicketID(id string) string {
	compact := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(compact) <= shortIDLength {
		return compact
	}
	return compact[len(compact)-shortIDLength:]
}
