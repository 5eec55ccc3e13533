package repository

import (
	"context"

	"creator-ai-platform/internal/domain/model"
)

type SubjectModelRepository interface {
	FindBySubject(ctx context.Context, tx Tx, subjectID string) (*model.SubjectModel, error)

	// UpsertState creates or updates the per-subject model row with a new
	// training state; LoraModelRef is written only on completion.
	UpsertState(ctx context.Context, tx Tx, subjectID string, state model.TrainingState, loraModelRef *string) error
}
