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

var _ repository.RequestRepository = (*requestRepo)(nil)

type requestRepo struct{ pool *pgxpool.Pool }

func NewRequestRepo(pool *pgxpool.Pool) *requestRepo {
	return &requestRepo{pool: pool}
}

const requestColumns = `id, user_id, subject_id, sample_paths, scene_preset, image_count,
  video_count, status, progress_done, progress_total, retry_count, output_paths,
  admin_notes, created_at, updated_at`

func (r *requestRepo) Create(ctx context.Context, tx repository.Tx, req *model.GenerationRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const q = `
INSERT INTO generation_requests (id, user_id, subject_id, sample_paths, scene_preset,
  image_count, video_count, status, progress_done, progress_total, retry_count,
  output_paths, admin_notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err := execSQL(ctx, r.pool, tx, q,
		req.ID, req.UserID, req.SubjectID, req.SamplePaths, req.ScenePreset,
		req.ImageCount, req.VideoCount, req.Status, req.ProgressDone, req.ProgressTotal,
		req.RetryCount, req.OutputPaths, req.AdminNotes, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *requestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationRequest, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+requestColumns+` FROM generation_requests WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	req := &model.GenerationRequest{}
	var status string
	err = row.Scan(
		&req.ID, &req.UserID, &req.SubjectID, &req.SamplePaths, &req.ScenePreset,
		&req.ImageCount, &req.VideoCount, &status, &req.ProgressDone, &req.ProgressTotal,
		&req.RetryCount, &req.OutputPaths, &req.AdminNotes, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, scanErr(err)
	}
	req.Status = model.RequestStatus(status)
	return req, nil
}

func (r *requestRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.RequestStatus, adminNotes *string) error {
	const q = `UPDATE generation_requests
  SET status=$2, admin_notes=COALESCE($3, admin_notes), updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, string(status), adminNotes)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// UpdateProgress clamps progress_done to progress_total and refuses to move
// retry_count backwards, keeping the aggregate invariants intact even against
// a misbehaving caller.
func (r *requestRepo) UpdateProgress(ctx context.Context, tx repository.Tx, id string, done, retries int, outputPaths []string) error {
	const q = `
UPDATE generation_requests
   SET progress_done=LEAST($2, progress_total),
       retry_count=GREATEST($3, retry_count),
       output_paths=$4,
       updated_at=NOW()
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, done, retries, outputPaths)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *requestRepo) ResetRetries(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE generation_requests SET retry_count=0, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
