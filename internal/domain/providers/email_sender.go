package providers

import "context"

// EmailSender is the outbound email collaborator. Delivery is best
// effort; callers catch and log failures.
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, html string) error
}
