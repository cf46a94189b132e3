package gateway

import (
	"context"
	"fmt"
)

// Sender dispatches a single SMS to one destination number. The originator
// identity is part of the sender's configuration, not per-request data.
// Implementations return the provider-assigned message id on success.
type Sender interface {
	Send(ctx context.Context, to, text string) (string, error)
}

// SendError reports a failed delivery attempt to the provider.
type SendError struct {
	StatusCode  int
	Description string
}

func (e *SendError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway send failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway send failed with status %d: %s", e.StatusCode, e.Description)
}
