package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.LeadRepository = (*leadRepo)(nil)

type leadRepo struct{ pool *pgxpool.Pool }

func NewLeadRepo(pool *pgxpool.Pool) *leadRepo {
	return &leadRepo{pool: pool}
}

const leadColumns = `id, handle, status, image_urls, sample_paths, created_at, updated_at`

func (r *leadRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Lead, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+leadColumns+` FROM leads WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanLead(row.Scan)
}

// ListCandidates is the admission pool query: qualified or imported leads,
// oldest updated first so leads skipped by maxPerCycle are evaluated on a
// later cycle before newly touched ones.
func (r *leadRepo) ListCandidates(ctx context.Context, tx repository.Tx, limit int) ([]*model.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + leadColumns + `
  FROM leads WHERE status IN ('qualified','imported') ORDER BY updated_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Lead
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *leadRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.LeadStatus) error {
	const q = `UPDATE leads SET status=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanLead(scan func(dest ...interface{}) error) (*model.Lead, error) {
	l := &model.Lead{}
	var status string
	if err := scan(&l.ID, &l.Handle, &status, &l.ImageURLs, &l.SamplePaths, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	l.Status = model.LeadStatus(status)
	return l, nil
}
