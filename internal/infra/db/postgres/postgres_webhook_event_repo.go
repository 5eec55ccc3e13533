package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

// Claim inserts the event row as the lock. A unique violation means the event
// was already delivered; a missing table means the dedup layer itself is not
// provisioned, which callers treat as "proceed without the lock".
func (r *webhookEventRepo) Claim(ctx context.Context, tx repository.Tx, provider, eventID, eventType string) error {
	const q = `
INSERT INTO webhook_events (provider, event_id, event_type, received_at, processed_at)
VALUES ($1,$2,$3,NOW(),NULL);`
	_, err := execSQL(ctx, r.pool, tx, q, provider, eventID, eventType)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		if isUndefinedTable(err) {
			return domain.ErrLockUnavailable
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *webhookEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, provider, eventID string) error {
	const q = `UPDATE webhook_events SET processed_at=NOW() WHERE provider=$1 AND event_id=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, provider, eventID)
	if err != nil {
		if isUndefinedTable(err) {
			return domain.ErrLockUnavailable
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
