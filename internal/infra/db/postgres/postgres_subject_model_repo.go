package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"creator-ai-platform/internal/domain"
	"creator-ai-platform/internal/domain/model"
	"creator-ai-platform/internal/domain/ports/repository"
)

var _ repository.SubjectModelRepository = (*subjectModelRepo)(nil)

type subjectModelRepo struct{ pool *pgxpool.Pool }

func NewSubjectModelRepo(pool *pgxpool.Pool) *subjectModelRepo {
	return &subjectModelRepo{pool: pool}
}

func (r *subjectModelRepo) FindBySubject(ctx context.Context, tx repository.Tx, subjectID string) (*model.SubjectModel, error) {
	const q = `SELECT id, subject_id, training_state, lora_model_ref, updated_at
  FROM subjects_models WHERE subject_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, subjectID)
	if err != nil {
		return nil, err
	}
	m := &model.SubjectModel{}
	var state string
	if err := row.Scan(&m.ID, &m.SubjectID, &state, &m.LoraModelRef, &m.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	m.TrainingState = model.TrainingState(state)
	return m, nil
}

func (r *subjectModelRepo) UpsertState(ctx context.Context, tx repository.Tx, subjectID string, state model.TrainingState, loraModelRef *string) error {
	const q = `
INSERT INTO subjects_models (id, subject_id, training_state, lora_model_ref, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (subject_id) DO UPDATE SET
  training_state=EXCLUDED.training_state,
  lora_model_ref=COALESCE(EXCLUDED.lora_model_ref, subjects_models.lora_model_ref),
  updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, uuid.NewString(), subjectID, string(state), loraModelRef)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
