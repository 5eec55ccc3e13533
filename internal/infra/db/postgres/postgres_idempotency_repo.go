package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.IdempotencyRepository = (*idempotencyRepo)(nil)

type idempotencyRepo struct{ pool *pgxpool.Pool }

func NewIdempotencyRepo(pool *pgxpool.Pool) *idempotencyRepo {
	return &idempotencyRepo{pool: pool}
}

// Insert claims the key. The unique constraint is the only cross-process
// coordination primitive: when two admission cycles race, exactly one insert
// succeeds and the loser sees ErrAlreadyExists.
func (r *idempotencyRepo) Insert(ctx context.Context, tx repository.Tx, key string) error {
	const q = `INSERT INTO idempotency_keys (key, created_at) VALUES ($1, NOW());`
	_, err := execSQL(ctx, r.pool, tx, q, key)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *idempotencyRepo) Exists(ctx context.Context, tx repository.Tx, key string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM idempotency_keys WHERE key=$1;`, key)
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, scanErr(err)
	}
	return n > 0, nil
}

func (r *idempotencyRepo) Delete(ctx context.Context, tx repository.Tx, key string) error {
	const q = `DELETE FROM idempotency_keys WHERE key=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, key)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
