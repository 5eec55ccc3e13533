package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct{ pool *pgxpool.Pool }

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, kind, purpose, status, external_id, output_path, last_error,
  subject_id, lead_id, request_id, preset_key, reference_image_path, lora_model_ref,
  sample_paths, created_at, started_at, finished_at`

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO jobs (id, kind, purpose, status, external_id, output_path, last_error,
  subject_id, lead_id, request_id, preset_key, reference_image_path, lora_model_ref,
  sample_paths, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Kind, job.Purpose, job.Status, job.ExternalID, job.OutputPath, job.LastError,
		job.SubjectID, job.LeadID, job.RequestID, job.PresetKey, job.ReferenceImagePath, job.LoraModelRef,
		job.SamplePaths, job.CreatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE external_id=$1 LIMIT 1;`, externalID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// SetExternalID writes the worker handle only while the column is NULL; the
// handle is never overwritten once set. Accepting the handle is also the
// pending -> running transition.
func (r *jobRepo) SetExternalID(ctx context.Context, tx repository.Tx, id, externalID string) error {
	const q = `UPDATE jobs SET external_id=$2, status='running', started_at=NOW() WHERE id=$1 AND external_id IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, id, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// MarkTerminal transitions to completed/failed only when the row is not
// already terminal. Duplicate callback deliveries therefore report false
// instead of clobbering the first result.
func (r *jobRepo) MarkTerminal(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, outputPath *string, lastError string) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE jobs
   SET status=$2,
       output_path=CASE WHEN $2='completed' THEN COALESCE($3, output_path) ELSE output_path END,
       last_error=$4,
       finished_at=NOW()
 WHERE id=$1
   AND status NOT IN ('completed','failed');`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), outputPath, lastError)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *jobRepo) LatestForLead(ctx context.Context, tx repository.Tx, leadID string, purpose model.JobPurpose) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + `
  FROM jobs WHERE lead_id=$1 AND purpose=$2 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, leadID, purpose)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) HasActiveTraining(ctx context.Context, tx repository.Tx, subjectID string) (bool, error) {
	const q = `SELECT COUNT(*) FROM jobs
  WHERE subject_id=$1 AND kind='training' AND status IN ('pending','running');`
	row, err := pickRow(ctx, r.pool, tx, q, subjectID)
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, scanErr(err)
	}
	return n > 0, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	j := &model.Job{}
	var kind, purpose, status string
	err := row.Scan(
		&j.ID, &kind, &purpose, &status, &j.ExternalID, &j.OutputPath, &j.LastError,
		&j.SubjectID, &j.LeadID, &j.RequestID, &j.PresetKey, &j.ReferenceImagePath, &j.LoraModelRef,
		&j.SamplePaths, &j.CreatedAt, &j.StartedAt, &j.FinishedAt,
	)
	if err != nil {
		return nil, scanErr(err)
	}
	j.Kind = model.JobKind(kind)
	j.Purpose = model.JobPurpose(purpose)
	j.Status = model.JobStatus(status)
	return j, nil
}
