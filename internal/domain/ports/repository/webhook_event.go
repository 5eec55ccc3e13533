package repository

import "context"

type WebhookEventRepository interface {
	// Claim inserts the event row; the insert is the lock. Returns
	// domain.ErrDuplicateEvent on a unique violation and
	// domain.ErrLockUnavailable when the lock table itself is missing.
	Claim(ctx context.Context, tx Tx, provider, eventID, eventType string) error

	// MarkProcessed is best-effort; failures are logged by the caller, never
	// retried, and never block the success response to the event source.
	MarkProcessed(ctx context.Context, tx Tx, provider, eventID string) error
}
