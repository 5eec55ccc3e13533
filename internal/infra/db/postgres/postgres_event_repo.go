package postgres

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.EventLogRepository = (*eventRepo)(nil)

type eventRepo struct{ pool *pgxpool.Pool }

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

func (r *eventRepo) Record(ctx context.Context, tx repository.Tx, event *model.AutomationEvent) error {
	if event.ID == "" {
		entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
		event.ID = ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO automation_events (id, event_type, entity_type, entity_id, payload_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q,
		event.ID, event.EventType, event.EntityType, event.EntityID, event.Payload, event.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
