package mail

import "context"

// Sender delivers outbound email. Callers treat delivery as best-effort:
// failures are logged by the caller and never block a ticket mutation.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
