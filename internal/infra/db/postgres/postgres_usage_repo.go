package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*usageRepo)(nil)

type usageRepo struct{ pool *pgxpool.Pool }

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Insert(ctx context.Context, tx repository.Tx, entry *model.UsageEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO gpu_usage (id, job_id, purpose, kind, cost_usd, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q,
		entry.ID, entry.JobID, entry.Purpose, entry.Kind, entry.CostUSD, entry.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// SumSinceUTCMidnight is the budget gate's only read: today's spend for one
// purpose tag, with "today" anchored at UTC midnight regardless of server TZ.
func (r *usageRepo) SumSinceUTCMidnight(ctx context.Context, tx repository.Tx, purpose model.JobPurpose) (float64, error) {
	const q = `
SELECT COALESCE(SUM(cost_usd), 0) FROM gpu_usage
 WHERE purpose=$1 AND created_at >= DATE_TRUNC('day', NOW() AT TIME ZONE 'UTC');`
	row, err := pickRow(ctx, r.pool, tx, q, purpose)
	if err != nil {
		return 0, err
	}
	var sum float64
	if err := row.Scan(&sum); err != nil {
		return 0, scanErr(err)
	}
	return sum, nil
}
